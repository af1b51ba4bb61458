// Package orders looks up customer order history in the DynamoDB
// customer store and renders it for chat display.
//
// The store holds one item per customer, keyed by name, with the order
// history embedded as a list of string-typed records. Records are
// parsed individually: a malformed order is skipped and logged, never
// aborting the rest of the history.
package orders

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrCustomerNotFound indicates no customer matched the given name.
var ErrCustomerNotFound = errors.New("customer not found")

// Order is a single parsed order record. Immutable; identity is ID.
type Order struct {
	ID         string
	Product    string
	Quantity   int
	OrderDate  time.Time
	TotalPrice float64
}

// rawOrder mirrors the store's string-typed order entry before coercion.
type rawOrder struct {
	OrderID    string `dynamodbav:"order_id"`
	Product    string `dynamodbav:"product"`
	Quantity   string `dynamodbav:"quantity"`
	OrderDate  string `dynamodbav:"order_date"`
	TotalPrice string `dynamodbav:"total_price"`
}

// rawCustomer mirrors a customer item as stored.
type rawCustomer struct {
	FirstName string     `dynamodbav:"first_name"`
	LastName  string     `dynamodbav:"last_name"`
	Orders    []rawOrder `dynamodbav:"orders"`
}

// storeDateLayout is the wire format for order dates.
const storeDateLayout = "2006-01-02"

// displayDateLayout is the long-form rendering, e.g. "March 01, 2024".
const displayDateLayout = "January 02, 2006"

// parseOrder coerces one raw record into an Order. Any unparseable
// field fails only this record.
func parseOrder(raw rawOrder) (Order, error) {
	date, err := time.Parse(storeDateLayout, raw.OrderDate)
	if err != nil {
		return Order{}, fmt.Errorf("parsing order date %q: %w", raw.OrderDate, err)
	}

	qty, err := strconv.Atoi(strings.TrimSpace(raw.Quantity))
	if err != nil {
		return Order{}, fmt.Errorf("parsing quantity %q: %w", raw.Quantity, err)
	}
	if qty <= 0 {
		return Order{}, fmt.Errorf("quantity %d out of range", qty)
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(raw.TotalPrice), 64)
	if err != nil {
		return Order{}, fmt.Errorf("parsing total price %q: %w", raw.TotalPrice, err)
	}
	if price < 0 {
		return Order{}, fmt.Errorf("total price %.2f out of range", price)
	}

	return Order{
		ID:         raw.OrderID,
		Product:    raw.Product,
		Quantity:   qty,
		OrderDate:  date,
		TotalPrice: price,
	}, nil
}
