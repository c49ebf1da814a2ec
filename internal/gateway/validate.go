package gateway

import (
	"errors"

	"github.com/sudo-init-do/gighub/internal/validation"
)

// ValidateRequest checks v before it is sent. Failures come back as a
// KindValidation error so callers handle local and remote rejections alike.
func ValidateRequest(v any) error {
	err := validation.Struct(v)
	if err == nil {
		return nil
	}
	var fe *validation.FieldError
	if errors.As(err, &fe) {
		return &Error{Kind: KindValidation, Message: "invalid request", Fields: fe.Fields, Err: err}
	}
	return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
}
