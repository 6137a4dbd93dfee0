package tools

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	customerIDPattern = regexp.MustCompile(`^cust_[0-9]+$`)
	requestIDPattern  = regexp.MustCompile(`^req_[a-zA-Z0-9_]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("customer_id", func(fl validator.FieldLevel) bool {
		return customerIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("request_id", func(fl validator.FieldLevel) bool {
		return requestIDPattern.MatchString(fl.Field().String())
	})

	return v
}

// toValidationError converts the first validator failure into a ValidationError
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Rule: describeRule(fe)}
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "customer_id":
		return "must match " + customerIDPattern.String()
	case "request_id":
		return "must match " + requestIDPattern.String()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag()
	}
}
