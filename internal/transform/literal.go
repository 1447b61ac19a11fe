package transform

import (
	"strconv"

	"github.com/specialistvlad/neuraldsl/internal/diag"
	"github.com/specialistvlad/neuraldsl/internal/hpo"
	"github.com/specialistvlad/neuraldsl/internal/model"
	"github.com/specialistvlad/neuraldsl/internal/syntax"
)

// value converts an argument expression into a parameter value. HPO calls
// are delegated to the resolver; any other call is rejected here because only
// wrapper layers accept a layer as an argument.
func value(e syntax.Expr) (model.Value, error) {
	if call, ok := e.(*syntax.Call); ok && call.Name == hpo.Keyword {
		return hpo.Resolve(call, literal)
	}
	return literal(e)
}

// literal converts a plain expression. Bare identifiers become strings.
func literal(e syntax.Expr) (model.Value, error) {
	switch v := e.(type) {
	case *syntax.Number:
		return number(v)
	case *syntax.Str:
		return model.String(v.Value), nil
	case *syntax.Bool:
		return model.Bool(v.Value), nil
	case *syntax.Ident:
		return model.String(v.Name), nil
	case *syntax.Tuple:
		return tuple(v)
	case *syntax.None:
		return nil, diag.NewValidationError(v.Rng, "Invalid value", "None is only allowed as a dimension of the input shape.")
	case *syntax.Call:
		if v.Name == hpo.Keyword {
			return nil, diag.NewValidationError(v.Rng, "Invalid HPO expression", "HPO expressions cannot be nested.")
		}
		return nil, diag.Validationf(v.Rng, "Unexpected layer argument",
			"%s(...) can only be used as the wrapped layer of TimeDistributed.", v.Name)
	}
	return nil, diag.NewValidationError(e.Range(), "Invalid value", "Unsupported expression.")
}

func number(n *syntax.Number) (model.Value, error) {
	if n.IsInt {
		i, err := strconv.ParseInt(n.Text, 10, 64)
		if err != nil {
			return nil, diag.Validationf(n.Rng, "Invalid number", "%q is not a valid integer.", n.Text)
		}
		return model.Int(i), nil
	}
	f, err := strconv.ParseFloat(n.Text, 64)
	if err != nil {
		return nil, diag.Validationf(n.Rng, "Invalid number", "%q is not a valid number.", n.Text)
	}
	return model.Float(f), nil
}

func tuple(t *syntax.Tuple) (model.Value, error) {
	out := make(model.Tuple, 0, len(t.Elems))
	for _, e := range t.Elems {
		n, ok := e.(*syntax.Number)
		if !ok || !n.IsInt {
			return nil, diag.NewValidationError(e.Range(), "Invalid tuple", "Tuple elements must be integers.")
		}
		v, err := number(n)
		if err != nil {
			return nil, err
		}
		out = append(out, int(v.(model.Int)))
	}
	return out, nil
}

// shape converts the declared input shape. None marks an unconstrained
// dimension; every other entry must be a positive integer.
func shape(t *syntax.Tuple) (model.Shape, error) {
	if len(t.Elems) == 0 {
		return nil, diag.NewValidationError(t.Rng, "Invalid input shape", "The input shape must have at least one dimension.")
	}
	out := make(model.Shape, 0, len(t.Elems))
	for _, e := range t.Elems {
		switch v := e.(type) {
		case *syntax.None:
			out = append(out, model.Unknown)
			continue
		case *syntax.Number:
			if v.IsInt {
				d, err := strconv.Atoi(v.Text)
				if err == nil && d > 0 {
					out = append(out, d)
					continue
				}
			}
		}
		return nil, diag.Validationf(e.Range(), "Invalid input shape",
			"Input dimensions must be positive integers or None, got %s.", describeExpr(e))
	}
	return out, nil
}

// describeExpr renders an expression for messages.
func describeExpr(e syntax.Expr) string {
	switch v := e.(type) {
	case *syntax.Number:
		return v.Text
	case *syntax.Str:
		return strconv.Quote(v.Value)
	case *syntax.Ident:
		return v.Name
	case *syntax.Call:
		return v.Name + "(...)"
	case *syntax.Tuple:
		return "a tuple"
	case *syntax.Bool:
		return strconv.FormatBool(v.Value)
	case *syntax.None:
		return "None"
	}
	return "an expression"
}
