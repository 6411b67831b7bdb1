package auth

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/sjawhar/kalakaar/internal/apperr"
)

type SignupRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,password"`
	Username  string `json:"username" validate:"omitempty,min=3,max=50"`
	FirstName string `json:"first_name" validate:"omitempty,personname"`
	LastName  string `json:"last_name" validate:"omitempty,personname"`
	Phone     string `json:"phone" validate:"omitempty,phone"`
	Location  string `json:"location" validate:"omitempty,max=100"`
	CraftType string `json:"craft_type" validate:"omitempty,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

const minPasswordLength = 6

var (
	namePattern      = regexp.MustCompile(`^[a-zA-Z\s\-']{2,50}$`)
	phonePattern     = regexp.MustCompile(`^\+?\d{10,15}$`)
	phoneFormatChars = regexp.MustCompile(`[\s\-()]`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return passwordProblem(fl.Field().String()) == ""
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(phoneFormatChars.ReplaceAllString(fl.Field().String(), ""))
	})
	return v
}

func passwordProblem(p string) string {
	if len(p) < minPasswordLength {
		return fmt.Sprintf("Password must be at least %d characters long", minPasswordLength)
	}
	var upper, lower, digit bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case !upper:
		return "Password must contain at least one uppercase letter"
	case !lower:
		return "Password must contain at least one lowercase letter"
	case !digit:
		return "Password must contain at least one number"
	}
	return ""
}

// Validate checks a request struct and returns an InvalidInput error with a
// per-field message map.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.InvalidInput, "Invalid request", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	first := fieldMessage(verrs[0])
	return apperr.New(apperr.InvalidInput, first).WithDetail("fields", fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email format"
	case "password":
		return passwordProblem(fmt.Sprint(fe.Value()))
	case "personname":
		return "Name must be 2-50 characters and contain only letters, spaces, hyphens, and apostrophes"
	case "phone":
		return "Please enter a valid phone number (10-15 digits)"
	case "min", "max":
		return fmt.Sprintf("%s must be %s %s characters", fe.Field(), map[string]string{"min": "at least", "max": "at most"}[fe.Tag()], fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
