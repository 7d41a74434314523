package metrics

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/adrank-triage/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their document names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return "id"
		}
		return name
	})
	return v
}

// Validate checks value ranges and required fields. Entries are checked one
// by one so messages name the offending route or surface, e.g.
// "route_stats[SUP1].share must be <= 1".
func Validate(snap *model.MetricsSnapshot) error {
	if snap == nil {
		return eris.Wrap(ErrInvalidSnapshot, "empty document")
	}

	var problems []string
	problems = append(problems, check(snap, "")...)
	for _, r := range snap.Routes {
		problems = append(problems, check(&r, fmt.Sprintf("route_stats[%s].", r.Route))...)
	}
	for _, s := range snap.Surfaces {
		problems = append(problems, check(&s, fmt.Sprintf("surface_stats[%s].", s.Surface))...)
	}

	if len(problems) > 0 {
		return eris.Wrapf(ErrInvalidSnapshot, "%s", strings.Join(problems, "; "))
	}
	return nil
}

func check(v any, prefix string) []string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{prefix + err.Error()}
	}

	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, prefix+fe.Field()+" "+describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
