package metadata

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report yaml field names so messages match the input document.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterStructValidation(recordRules, Record{})
	validate.RegisterStructValidation(componentRules, Component{})
	validate.RegisterStructValidation(transformationRules, Transformation{})
}

func recordRules(sl validator.StructLevel) {
	r := sl.Current().Interface().(Record)
	if r.References != nil && !r.IsForeignKey {
		sl.ReportError(r.References, "references", "References", "fkflag", "")
	}
}

func componentRules(sl validator.StructLevel) {
	c := sl.Current().Interface().(Component)
	if len(c.RelatedHubs) > 0 && c.ComponentType != TypeLink {
		sl.ReportError(c.RelatedHubs, "related_hubs", "RelatedHubs", "linkonly", "")
	}
}

func transformationRules(sl validator.StructLevel) {
	t := sl.Current().Interface().(Transformation)
	if t.Source.Schema == "" {
		sl.ReportError(t.Source.Schema, "source.schema", "Schema", "required", "")
	}
	if t.Target.Schema == "" {
		sl.ReportError(t.Target.Schema, "target.schema", "Schema", "required", "")
	}
}

// Validate checks a record, component or transformation against its field
// rules and returns one error listing every violation.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fmt.Sprint(fe.Value()))
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "fkflag":
		return field + " given but is_foreign_key is false"
	case "linkonly":
		return field + " is only allowed on links"
	}
	return fmt.Sprintf("%s failed %q", field, fe.Tag())
}

// fieldPath strips the root struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
