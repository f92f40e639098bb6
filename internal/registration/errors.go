// ABOUTME: Validation error type for account registration input
// ABOUTME: Maps validator field errors and store uniqueness conflicts to readable messages

package registration

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports registration input that was rejected.
// Rule is the validator tag that failed, or "unique" for conflicts with
// an existing account.
type ValidationError struct {
	Field string
	Rule  string
	Param string
	Err   error // underlying store error for "unique"
}

func (e *ValidationError) Error() string {
	switch e.Rule {
	case "required":
		return e.Field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", e.Field, e.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", e.Field, e.Param)
	case "startswith":
		return fmt.Sprintf("invalid SSH key format: %s must start with %q", e.Field, e.Param)
	case "excludesall":
		return e.Field + " contains invalid characters"
	case "unique":
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Field + " is already taken"
	default:
		return fmt.Sprintf("%s failed validation (%s)", e.Field, e.Rule)
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// fromValidator converts the first field error reported by the validator.
func fromValidator(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return &ValidationError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()}
	}
	return err
}
