package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/stellar/go/strkey"
)

// tag names registered on the shared validator.
const (
	addressTag   = "stellar_address"
	referenceTag = "reference"
)

// maxReferenceLength bounds deposit and withdrawal references.
const maxReferenceLength = 128

var validate = newValidator()

// Error reports every field that failed validation.
type Error struct {
	Fields []string
}

func (e *Error) Error() string {
	return "invalid request: " + strings.Join(e.Fields, ", ")
}

// Struct validates v against its `validate` tags.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &Error{}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return out
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation(addressTag, func(fl validator.FieldLevel) bool {
		return strkey.IsValidEd25519PublicKey(fl.Field().String())
	})
	_ = v.RegisterValidation(referenceTag, func(fl validator.FieldLevel) bool {
		ref := fl.Field().String()
		if len(ref) > maxReferenceLength {
			return false
		}
		return strings.TrimSpace(ref) == ref
	})
	return v
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}
