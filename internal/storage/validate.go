package storage

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/Vasu1712/bookmate-backend/internal/errors"
	"github.com/Vasu1712/bookmate-backend/internal/models"
)

var validate = validator.New()

// NewMessage is the input of MessageStore.Create.
type NewMessage struct {
	Text     string `validate:"required,max=500"`
	Sender   string `validate:"required"`
	Receiver string `validate:"required"`
}

// ValidateMessage checks a message before it is persisted. Length is counted
// in characters, not bytes.
func ValidateMessage(text, sender, receiver string) error {
	err := validate.Struct(NewMessage{Text: text, Sender: sender, Receiver: receiver})
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.NewValidationError(err.Error())
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return apperrors.NewValidationError(fmt.Sprintf("%s is required", fieldName(fe.Field())))
	case "max":
		return apperrors.NewValidationError(fmt.Sprintf("%s must be at most %d characters", fieldName(fe.Field()), models.MaxTextLength))
	default:
		return apperrors.NewValidationError(fmt.Sprintf("%s is invalid", fieldName(fe.Field())))
	}
}

func fieldName(field string) string {
	switch field {
	case "Text":
		return "text"
	case "Sender":
		return "sender"
	case "Receiver":
		return "receiver"
	}
	return field
}
