package orders

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rivertownball/riverchat/internal/log"
)

// Scanner is the slice of the DynamoDB API the service consumes.
// Interfaces are defined by the consumer, not the provider; tests
// substitute a fake.
type Scanner interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Service queries the customer store for order history.
type Service struct {
	db     Scanner
	table  string
	logger log.Logger
}

// NewService creates an order lookup service over the given table.
func NewService(db Scanner, table string, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		db:     db,
		table:  table,
		logger: logger,
	}
}

// Lookup returns the order history for the named customer.
//
// Names are normalised to title case before the exact-match scan, so
// "john SMITH" finds the record stored as "John Smith". Return values:
//   - (orders, nil): customer found, history parsed
//   - ([], nil): customer found but has no orders
//   - (nil, ErrCustomerNotFound): no such customer
//   - (nil, err): the store query itself failed
//
// A malformed individual order record is skipped and logged; it never
// aborts the remaining records.
func (s *Service) Lookup(ctx context.Context, firstName, lastName string) ([]Order, error) {
	firstName = title(firstName)
	lastName = title(lastName)

	s.logger.Info("querying customer store", "first_name", firstName, "last_name", lastName)

	out, err := s.db.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.table),
		FilterExpression: aws.String("#fn = :fn AND #ln = :ln"),
		ExpressionAttributeNames: map[string]string{
			"#fn": "first_name",
			"#ln": "last_name",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":fn": &types.AttributeValueMemberS{Value: firstName},
			":ln": &types.AttributeValueMemberS{Value: lastName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scanning customer table: %w", err)
	}

	if len(out.Items) == 0 {
		return nil, ErrCustomerNotFound
	}

	var customer rawCustomer
	if err := attributevalue.UnmarshalMap(out.Items[0], &customer); err != nil {
		return nil, fmt.Errorf("unmarshaling customer record: %w", err)
	}

	orders := make([]Order, 0, len(customer.Orders))
	for _, raw := range customer.Orders {
		order, err := parseOrder(raw)
		if err != nil {
			s.logger.Warn("skipping malformed order record",
				"order_id", raw.OrderID, "error", err)
			continue
		}
		orders = append(orders, order)
	}

	s.logger.Info("customer orders loaded",
		"customer", firstName+" "+lastName,
		"orders", len(orders),
		"skipped", len(customer.Orders)-len(orders))

	return orders, nil
}

// title uppercases the first rune and lowercases the rest.
func title(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
