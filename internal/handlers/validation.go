package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	// mfacode accepts a 6-digit TOTP code or a backup code, with or without separators
	_ = v.RegisterValidation("mfacode", func(fl validator.FieldLevel) bool {
		return isMFACode(fl.Field().String())
	})
	return v
}

func isMFACode(raw string) bool {
	code := auth.NormalizeBackupCode(raw)
	switch len(code) {
	case 6:
		for _, r := range code {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	case auth.BackupCodeLength:
		for _, r := range code {
			if (r < '0' || r > '9') && (r < 'A' || r > 'Z') {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ValidateRequest runs the struct tags of req and returns the first failing
// field as a *models.ValidationError
func ValidateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return models.NewValidationError(ve[0].Field(), formatValidationError(ve[0]))
	}
	return models.NewValidationError("", err.Error())
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "mfacode":
		return "must be a 6-digit code or a backup code"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
