package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
)

// defaultRegion is used when a phone number arrives without a country prefix.
var defaultRegion = "IR"

// Init configures the global validator used by Gin's binding.
// - Uses JSON tag names in errors.
// - Registers the phone validation plus alias tags for common validations.
func Init(phoneRegion string) {
	if phoneRegion != "" {
		defaultRegion = phoneRegion
	}
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("phone", validatePhone)
		// Aliases for common semantics
		v.RegisterAlias("pwd", "min=6")             // password minimum length
		v.RegisterAlias("otpcode", "len=6,numeric") // OTP challenge code shape
	}
}

func validatePhone(fl validator.FieldLevel) bool {
	raw, ok := fl.Field().Interface().(string)
	if !ok || raw == "" {
		return false
	}
	num, err := phonenumbers.Parse(raw, defaultRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// NormalizePhone parses a phone number and returns its E.164 form, so that the
// same subscriber always maps to the same identity key.
func NormalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, defaultRegion)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errors.New("invalid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ToDetails converts validation/binding errors into a map[field]message suitable for API error.details.
func ToDetails(err error) map[string]string {
	if err == nil {
		return nil
	}

	// Invalid JSON payloads
	var se *json.SyntaxError
	var ute *json.UnmarshalTypeError
	if errors.As(err, &se) || errors.As(err, &ute) {
		return map[string]string{"payload": "invalid json"}
	}

	// Validation errors from validator.v10
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fe.Field()] = formatFieldError(fe)
		}
		return out
	}

	// Fallback
	return map[string]string{"payload": "invalid payload"}
}

func formatFieldError(fe validator.FieldError) string {
	tag := fe.Tag()
	param := fe.Param()

	switch tag {
	case "required":
		return "is required"
	case "phone":
		return "must be a valid phone number"
	case "e164":
		return "must be a valid phone number"
	case "numeric":
		return "must contain digits only"
	case "len":
		return fmt.Sprintf("must be exactly %s characters long", param)
	case "min":
		if isNumberKind(fe.Kind()) {
			return "must be at least " + param
		}
		return "must be at least " + param + " characters long"
	case "max":
		if isNumberKind(fe.Kind()) {
			return "must be at most " + param
		}
		return "must be at most " + param + " characters long"
	case "gt":
		return "must be greater than " + param
	case "gte":
		return "must be at least " + param
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(param, " ", ", ")
	case "dive":
		return "has invalid elements"
	default:
		if param != "" {
			return fmt.Sprintf("failed '%s=%s' validation", tag, param)
		}
		return fmt.Sprintf("failed '%s' validation", tag)
	}
}

func isNumberKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
