package validator

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var currencyPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)

// Validator validates structs using `validate` / `binding` tags.
type Validator interface {
	Validate(obj interface{}) error
	Engine() *validator.Validate
}

type structValidator struct {
	v *validator.Validate
}

// New returns a validator with the shared custom tags plus any extra ones.
func New(custom map[string]validator.Func) Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	Configure(v, custom)
	return &structValidator{v: v}
}

// NewBinding returns a validator that reads gin's `binding` tags, so request
// structs bound by handlers can be checked again by services.
func NewBinding(custom map[string]validator.Func) Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	Configure(v, custom)
	return &structValidator{v: v}
}

func (s *structValidator) Validate(obj interface{}) error {
	return s.v.Struct(obj)
}

func (s *structValidator) Engine() *validator.Validate {
	return s.v
}

// Configure registers json field names and the custom tags on v. It is also
// applied to gin's binding engine so request and service validation agree.
func Configure(v *validator.Validate, custom map[string]validator.Func) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	builtin := map[string]validator.Func{
		"currency": isCurrency,
		"timezone": isTimezone,
	}
	for tag, fn := range builtin {
		_ = v.RegisterValidation(tag, fn)
	}
	for tag, fn := range custom {
		_ = v.RegisterValidation(tag, fn)
	}
}

// OneOf builds a validation func that accepts only the given string values.
func OneOf[T ~string](values ...T) validator.Func {
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[string(v)] = struct{}{}
	}
	return func(fl validator.FieldLevel) bool {
		_, ok := allowed[fl.Field().String()]
		return ok
	}
}

func isCurrency(fl validator.FieldLevel) bool {
	return currencyPattern.MatchString(fl.Field().String())
}

func isTimezone(fl validator.FieldLevel) bool {
	tz := fl.Field().String()
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}
