package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
)

var (
	plotIDPattern  = regexp.MustCompile(`^[A-Za-z0-9]+(-[A-Za-z0-9]+){2,}$`)
	phone11Pattern = regexp.MustCompile(`^[0-9]{11}$`)
)

// NewValidator returns a validator that reports json field names and knows the
// domain tags plot_id and phone11.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("plot_id", func(fl validator.FieldLevel) bool {
		return plotIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone11", func(fl validator.FieldLevel) bool {
		return phone11Pattern.MatchString(fl.Field().String())
	})
	return v
}

// validateStruct trims every string field of ptr in place and validates it. Only the
// first failing field, in declaration order, is reported.
func validateStruct(v *validator.Validate, ptr interface{}) error {
	trimStrings(reflect.ValueOf(ptr))
	return firstValidationError(v.Struct(ptr))
}

// validatePartial validates only the named Go fields of ptr.
func validatePartial(v *validator.Validate, ptr interface{}, fields ...string) error {
	trimStrings(reflect.ValueOf(ptr))
	return firstValidationError(v.StructPartial(ptr, fields...))
}

func firstValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return appErrors.Validation(fe.Field(), validationReason(fe))
	}
	return appErrors.Clone(appErrors.ErrValidation, err.Error())
}

func validationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "phone11":
		return "must be exactly 11 digits"
	case "plot_id":
		return "must follow SECTION-LEVEL-NUMBER"
	}
	return "is invalid"
}

func trimStrings(v reflect.Value) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(strings.TrimSpace(field.String()))
		case reflect.Struct:
			trimStrings(field.Addr())
		}
	}
}
