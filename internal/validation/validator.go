// Package validation checks request bodies before they reach the services.
package validation

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	tagProvider       = "provider"
	tagTokensRequired = "tokens_required"
)

type providersKey struct{}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidationCtx(tagProvider, validProvider); err != nil {
		panic(err)
	}
	v.RegisterStructValidation(consumeHasTokens, ConsumeRequest{})
	return v
}

// validProvider matches the field case-insensitively against the providers
// carried in the validation context.
func validProvider(ctx context.Context, fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, p := range providersFrom(ctx) {
		if strings.EqualFold(p, value) {
			return true
		}
	}
	return false
}

func providersFrom(ctx context.Context) []string {
	providers, _ := ctx.Value(providersKey{}).([]string)
	return providers
}

func consumeHasTokens(sl validator.StructLevel) {
	r := sl.Current().Interface().(ConsumeRequest)
	if r.InputTokens <= 0 && r.OutputTokens <= 0 {
		sl.ReportError(r.InputTokens, "tokens", "tokens", tagTokensRequired, "")
	}
}

// check runs the struct tags and converts failures into Errors.
func check(ctx context.Context, s interface{}) error {
	err := validate.StructCtx(ctx, s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(Errors, len(fieldErrs))
	for _, fe := range fieldErrs {
		// First failing rule wins for a field.
		if _, exists := out[fe.Field()]; !exists {
			out[fe.Field()] = message(ctx, fe)
		}
	}
	return out
}

func message(ctx context.Context, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Ptr {
			return "is required"
		}
		return "must not be empty"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		if fe.Param() == "0" {
			return "must not be negative"
		}
		return "must be at least " + fe.Param()
	case "max":
		return "is too long"
	case tagProvider:
		return "must be one of " + strings.Join(providersFrom(ctx), ", ")
	case tagTokensRequired:
		return "input_tokens or output_tokens must be greater than 0"
	default:
		return "is invalid"
	}
}

// Errors is a set of field errors usable as an error value.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return strings.Join(parts, "; ")
}
