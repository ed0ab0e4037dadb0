package validator

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Role validation
	validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		role := fl.Field().String()
		validRoles := []string{"producer", "buyer", "regulator"}
		for _, r := range validRoles {
			if role == r {
				return true
			}
		}
		return false
	})

	// Production date: ISO date or RFC3339 timestamp
	validate.RegisterValidation("production_date", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if _, err := time.Parse("2006-01-02", s); err == nil {
			return true
		}
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "uuid":
			errors[field] = "Invalid id format"
		case "role":
			errors[field] = "Invalid role. Must be: producer, buyer, or regulator"
		case "production_date":
			errors[field] = "Invalid date. Use YYYY-MM-DD or RFC3339"
		default:
			errors[field] = "Invalid value"
		}
	}
	return errors
}
