// Package hpo rewrites HPO(...) expressions into search space descriptors.
//
//	HPO(choice(v1, v2, ...))         categorical
//	HPO(range(start, end, step=S))   range, step optional
//	HPO(log_range(low, high))        log_range
//
// Resolution is a pure function of the expression. Anything else written
// inside HPO(...) is rejected.
package hpo

import (
	"slices"

	"github.com/specialistvlad/neuraldsl/internal/diag"
	"github.com/specialistvlad/neuraldsl/internal/model"
	"github.com/specialistvlad/neuraldsl/internal/syntax"
)

// Keyword is the name of the wrapping call.
const Keyword = "HPO"

const invalidSummary = "Invalid HPO expression"

// Literal converts a plain (non-HPO) expression into a value.
type Literal func(syntax.Expr) (model.Value, error)

// IsHPO reports whether e is an HPO(...) call.
func IsHPO(e syntax.Expr) bool {
	call, ok := e.(*syntax.Call)
	return ok && call.Name == Keyword
}

// Resolve converts an HPO(...) call into a descriptor. literal converts the
// individual values.
func Resolve(call *syntax.Call, literal Literal) (*model.HPO, error) {
	if call.Name != Keyword {
		return nil, diag.Validationf(call.Rng, invalidSummary, "Expected %s(...), got %s(...).", Keyword, call.Name)
	}
	if len(call.Args) != 1 || call.Args[0].Name != "" {
		return nil, diag.Validationf(call.Rng, invalidSummary,
			"%s takes exactly one search space: choice(...), range(...) or log_range(...).", Keyword)
	}
	space, ok := call.Args[0].Value.(*syntax.Call)
	if !ok {
		return nil, diag.Validationf(call.Args[0].Rng, invalidSummary,
			"%s takes a search space such as choice(...), not a plain value.", Keyword)
	}

	switch space.Name {
	case "choice":
		return choice(space, literal)
	case "range":
		return linearRange(space, literal)
	case "log_range":
		return logRange(space, literal)
	}
	return nil, diag.Validationf(space.NameRange, invalidSummary,
		"Unknown search space %q; expected choice, range or log_range.", space.Name)
}

func choice(space *syntax.Call, literal Literal) (*model.HPO, error) {
	if len(space.Args) == 0 {
		return nil, diag.NewValidationError(space.Rng, invalidSummary, "choice() needs at least one value.")
	}
	h := &model.HPO{Type: model.HPOCategorical}
	for _, arg := range space.Args {
		if arg.Name != "" {
			return nil, diag.Validationf(arg.Rng, invalidSummary, "choice() does not take named arguments, got %q.", arg.Name)
		}
		if IsHPO(arg.Value) {
			return nil, diag.NewValidationError(arg.Rng, invalidSummary, "HPO expressions cannot be nested.")
		}
		v, err := literal(arg.Value)
		if err != nil {
			return nil, err
		}
		h.Values = append(h.Values, v)
	}
	return h, nil
}

func linearRange(space *syntax.Call, literal Literal) (*model.HPO, error) {
	vals, err := numericArgs(space, literal, []string{"start", "end", "step"}, 2)
	if err != nil {
		return nil, err
	}
	h := &model.HPO{Type: model.HPORange, Start: vals["start"], End: vals["end"], Step: vals["step"]}

	start, _ := model.AsNumber(h.Start)
	end, _ := model.AsNumber(h.End)
	if end <= start {
		return nil, diag.Validationf(space.Rng, invalidSummary, "range end must be greater than start, got start=%s end=%s.", h.Start, h.End)
	}
	if h.Step != nil {
		if step, _ := model.AsNumber(h.Step); step <= 0 {
			return nil, diag.Validationf(space.Rng, invalidSummary, "range step must be positive, got %s.", h.Step)
		}
	}
	return h, nil
}

func logRange(space *syntax.Call, literal Literal) (*model.HPO, error) {
	vals, err := numericArgs(space, literal, []string{"low", "high"}, 2)
	if err != nil {
		return nil, err
	}
	h := &model.HPO{Type: model.HPOLogRange, Low: vals["low"], High: vals["high"]}

	low, _ := model.AsNumber(h.Low)
	high, _ := model.AsNumber(h.High)
	if low <= 0 {
		return nil, diag.Validationf(space.Rng, invalidSummary, "log_range low must be positive, got %s.", h.Low)
	}
	if high <= low {
		return nil, diag.Validationf(space.Rng, invalidSummary, "log_range high must be greater than low, got low=%s high=%s.", h.Low, h.High)
	}
	return h, nil
}

// numericArgs binds positional and named arguments to slots and checks that
// every bound value is a number. The first required slots must be present.
func numericArgs(space *syntax.Call, literal Literal, slots []string, required int) (map[string]model.Value, error) {
	out := make(map[string]model.Value, len(slots))
	positional := 0
	for _, arg := range space.Args {
		name := arg.Name
		if name == "" {
			if positional >= len(slots) {
				return nil, diag.Validationf(arg.Rng, invalidSummary, "%s() takes at most %d arguments.", space.Name, len(slots))
			}
			name = slots[positional]
			positional++
		} else if !slices.Contains(slots, name) {
			return nil, diag.Validationf(arg.NameRange, invalidSummary, "%s() has no argument %q.", space.Name, name)
		}
		if _, dup := out[name]; dup {
			return nil, diag.Validationf(arg.Rng, invalidSummary, "%s() argument %q is given twice.", space.Name, name)
		}

		v, err := literal(arg.Value)
		if err != nil {
			return nil, err
		}
		if _, ok := model.AsNumber(v); !ok {
			return nil, diag.Validationf(arg.Rng, invalidSummary, "%s() %s must be a number, got %s.", space.Name, name, model.TypeName(v))
		}
		out[name] = v
	}

	for _, name := range slots[:required] {
		if _, ok := out[name]; !ok {
			return nil, diag.Validationf(space.Rng, invalidSummary, "%s() requires %s.", space.Name, name)
		}
	}
	return out, nil
}
