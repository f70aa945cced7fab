// Package validation wraps go-playground/validator with English messages and
// JSON field names, and converts failures into domain.ValidationError.
package validation

import (
	"reflect"
	"strings"

	"BranchLMS/internal/domain"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	objectIDTag  = "objectid"
	objectIDText = "{0} must be a 24 character hex id"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// report JSON names instead of Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query", "param"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	_ = validate.RegisterValidation(objectIDTag, func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != 24 {
			return false
		}
		for _, r := range s {
			if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
				return false
			}
		}
		return true
	})
	_ = validate.RegisterTranslation(objectIDTag, translator,
		func(t ut.Translator) error { return t.Add(objectIDTag, objectIDText, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(objectIDTag, fe.Field())
			return s
		},
	)
}

// Struct validates v and returns a *domain.ValidationError listing every failed field.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate")
	}
	fields := make([]domain.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, domain.FieldError{Field: fe.Field(), Error: fe.Translate(translator)})
	}
	return domain.NewValidationError("invalid input", fields...)
}
