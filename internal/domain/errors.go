package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrEmptyCart is returned when checkout has nothing to submit.
	ErrEmptyCart = errors.New("cart is empty")
)

// ValidationError lists every customer field that was blank, in form order.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// ReconciliationError means the cart could not be priced at all. The cart is
// left as it was.
type ReconciliationError struct {
	Err error
}

func (e *ReconciliationError) Error() string {
	return "reconcile cart: " + e.Err.Error()
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// OrderSubmissionError means the backend did not confirm an order.
type OrderSubmissionError struct {
	Err error
}

func (e *OrderSubmissionError) Error() string {
	return "submit order: " + e.Err.Error()
}

func (e *OrderSubmissionError) Unwrap() error { return e.Err }
