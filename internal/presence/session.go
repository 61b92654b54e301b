package presence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// SystemSender is the From value of notifications produced by the engine.
const SystemSender = "system"

// ConnID identifies one live transport connection.
type ConnID string

// Session is the (username, room) binding held by a connection.
type Session struct {
	ConnID   ConnID
	Username string
	Room     string
}

// JoinRequest carries the user-supplied fields of a join event.
type JoinRequest struct {
	Username string `validate:"required,max=64"`
	Room     string `validate:"required,max=128"`
}

var validate = validator.New()

// normalize trims the request and validates it. The returned error wraps
// ErrInvalidArgument.
func (r JoinRequest) normalize() (JoinRequest, error) {
	r.Username = strings.TrimSpace(r.Username)
	r.Room = strings.TrimSpace(r.Room)
	if err := validate.Struct(r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrInvalidArgument, describeValidation(err))
	}
	return r, nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return strings.ToLower(fe.Field()) + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", strings.ToLower(fe.Field()), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field()))
	}
}
