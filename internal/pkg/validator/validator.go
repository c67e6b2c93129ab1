package validator

import (
	"reflect"
	"strings"

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
	// Transaction type validation
	validate.RegisterValidation("tx_type", func(fl validator.FieldLevel) bool {
		t := fl.Field().String()
		validTypes := []string{"EARN", "REDEEM", "WELCOME_BONUS", "ADJUSTMENT", "REWARD_REQUEST", ""}
		for _, v := range validTypes {
			if t == v {
				return true
			}
		}
		return false
	})

	// Transaction status validation
	validate.RegisterValidation("tx_status", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		validStatuses := []string{"PENDING", "APPROVED", "REJECTED", "PROCESSED", "PAID", "UNPAID", "COMPLETED", "FAILED", ""}
		for _, v := range validStatuses {
			if s == v {
				return true
			}
		}
		return false
	})

	// Payment method validation
	validate.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		m := fl.Field().String()
		validMethods := []string{"upi", "bank_transfer", "manual", ""}
		for _, v := range validMethods {
			if m == v {
				return true
			}
		}
		return false
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
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "uuid":
			errors[field] = "Invalid UUID format"
		case "tx_type":
			errors[field] = "Invalid transaction type"
		case "tx_status":
			errors[field] = "Invalid transaction status"
		case "payment_method":
			errors[field] = "Invalid payment method. Must be: upi, bank_transfer, or manual"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
