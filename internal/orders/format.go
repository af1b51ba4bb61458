package orders

import (
	"fmt"
	"strings"
)

// Column widths for the order table. Product names longer than the
// column simply widen their row; only the ID column truncates.
const (
	idWidth      = 10
	productWidth = 20
	qtyWidth     = 3
	dateWidth    = 18
	maxIDLen     = 8
)

// FormatTable renders orders as a fixed-column text table. Pure
// function: deterministic output for the same input, no side effects.
// Empty input produces the header with no rows.
func FormatTable(orders []Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-*s | %-*s | %*s | %-*s | %s\n",
		idWidth, "Order ID", productWidth, "Product", qtyWidth, "Qty",
		dateWidth, "Date", "Total")
	b.WriteString(strings.Repeat("-", idWidth+productWidth+qtyWidth+dateWidth+20))
	b.WriteString("\n")

	for _, o := range orders {
		fmt.Fprintf(&b, "%-*s | %-*s | %*d | %-*s | $%.2f\n",
			idWidth, truncateID(o.ID),
			productWidth, o.Product,
			qtyWidth, o.Quantity,
			dateWidth, o.OrderDate.Format(displayDateLayout),
			o.TotalPrice)
	}

	return b.String()
}

// truncateID shortens identifiers longer than 8 characters with a
// trailing ellipsis marker, e.g. "AB1234567" -> "AB1234...".
func truncateID(id string) string {
	if len(id) > maxIDLen {
		return id[:maxIDLen-2] + "..."
	}
	return id
}
