package billing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateInput checks struct tags on a service input and converts failures
// into a validation DomainError.
func ValidateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.NewValidationError("INVALID_INPUT", err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return shared.NewValidationError("INVALID_INPUT", strings.Join(msgs, "; "))
}
