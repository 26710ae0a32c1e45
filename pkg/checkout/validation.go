package checkout

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/neurocare-backend/pkg/errors"
)

var (
	pincodeRe    = regexp.MustCompile(`^\d{6}$`)
	mobileRe     = regexp.MustCompile(`^[6-9]\d{9}$`)
	cardNumberRe = regexp.MustCompile(`^\d{15,16}$`)
	cardExpiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvRe        = regexp.MustCompile(`^\d{3,4}$`)
)

var rules = map[string]*regexp.Regexp{
	"pincode":     pincodeRe,
	"in_mobile":   mobileRe,
	"card_number": cardNumberRe,
	"card_expiry": cardExpiryRe,
	"cvv":         cvvRe,
}

var ruleMessages = map[string]string{
	"pincode":     "must be 6 digits",
	"in_mobile":   "must be a valid 10-digit Indian mobile number",
	"card_number": "must be 15 or 16 digits",
	"card_expiry": "must use MM/YY format",
	"cvv":         "must be 3 or 4 digits",
}

var validate = NewValidator()

// NewValidator builds a validator that reports json field names and knows the checkout rules.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	for tag, re := range rules {
		// registration only fails on empty tags
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(strings.TrimSpace(fl.Field().String()))
		})
	}
	return v
}

// Validate checks a struct against its validate tags.
func Validate(dest any) error {
	if err := validate.Struct(dest); err != nil {
		return FormatValidationErrors(err)
	}
	return nil
}

// FormatValidationErrors maps validator output to a VALIDATION_ERROR keyed by field.
func FormatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	if msg, ok := ruleMessages[fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	}
	return "is invalid"
}
