package utils

import (
	"fmt"
	"regexp"
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9]{3,15}$`)

// ValidatePhone validates a caller phone number in loose E.164 form
func ValidatePhone(phone string) error {
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("invalid phone number: %s", phone)
	}
	return nil
}

// ValidateServiceLine validates a billable service line before claim creation
func ValidateServiceLine(code string, quantity int, unitPrice float64) error {
	if code == "" {
		return fmt.Errorf("service code is required")
	}
	if quantity <= 0 {
		return fmt.Errorf("service quantity must be positive: %d", quantity)
	}
	if unitPrice < 0 {
		return fmt.Errorf("service unit price must not be negative: %.2f", unitPrice)
	}
	return nil
}
