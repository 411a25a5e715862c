package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProductID is an opaque catalog key. The backend serves numeric ids while
// older carts may hold strings, so both JSON forms are accepted.
type ProductID string

func (id ProductID) String() string { return string(id) }

func (id ProductID) MarshalJSON() ([]byte, error) {
	return marshalFlexibleID(string(id))
}

func (id *ProductID) UnmarshalJSON(b []byte) error {
	s, err := unmarshalFlexibleID(b)
	if err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	*id = ProductID(s)
	return nil
}

// OrderID identifies an order created by the backend.
type OrderID string

func (id OrderID) String() string { return string(id) }

func (id OrderID) MarshalJSON() ([]byte, error) {
	return marshalFlexibleID(string(id))
}

func (id *OrderID) UnmarshalJSON(b []byte) error {
	s, err := unmarshalFlexibleID(b)
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	*id = OrderID(s)
	return nil
}

func unmarshalFlexibleID(b []byte) (string, error) {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func marshalFlexibleID(s string) ([]byte, error) {
	if isPlainInteger(s) {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

func isPlainInteger(s string) bool {
	if s == "" || len(s) > 18 {
		return false
	}
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
