// backend/src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	MaxDescriptionLength = 1024
	MaxNotesLength       = 4096
	MaxSourceTextLength  = 8192

	// DateLayout is the canonical date format for staged records.
	DateLayout = "2006-01-02"
)

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateDate checks the canonical YYYY-MM-DD format.
func ValidateDate(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("%w: %s ('%s') is not a valid YYYY-MM-DD date", ErrValidationFailed, fieldName, s)
	}
	return nil
}
