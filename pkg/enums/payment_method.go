package enums

import "fmt"

// PaymentMethod describes how a buyer settles the cart at checkout.
type PaymentMethod string

const (
	PaymentMethodCard     PaymentMethod = "tarjeta"
	PaymentMethodTransfer PaymentMethod = "transferencia"
	PaymentMethodCash     PaymentMethod = "efectivo"
)

// DefaultPaymentMethod is used when checkout is requested without a method.
const DefaultPaymentMethod = PaymentMethodCard

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodTransfer,
	PaymentMethodCash,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod; empty input
// selects DefaultPaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	if value == "" {
		return DefaultPaymentMethod, nil
	}
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
