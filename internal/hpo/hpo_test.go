package hpo

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/specialistvlad/neuraldsl/internal/diag"
	"github.com/specialistvlad/neuraldsl/internal/model"
	"github.com/specialistvlad/neuraldsl/internal/parser"
	"github.com/specialistvlad/neuraldsl/internal/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// literal is a minimal converter covering numbers and strings.
func literal(e syntax.Expr) (model.Value, error) {
	switch v := e.(type) {
	case *syntax.Number:
		if v.IsInt {
			n, err := strconv.ParseInt(v.Text, 10, 64)
			return model.Int(n), err
		}
		f, err := strconv.ParseFloat(v.Text, 64)
		return model.Float(f), err
	case *syntax.Str:
		return model.String(v.Value), nil
	}
	return nil, fmt.Errorf("unsupported expression %T", e)
}

// hpoCall parses `X(<expr>)` and returns the expression as a call.
func hpoCall(t *testing.T, expr string) *syntax.Call {
	t.Helper()
	l, err := parser.ParseLayer("", []byte("X("+expr+")"))
	require.NoError(t, err)
	call, ok := l.Call.Args[0].Value.(*syntax.Call)
	require.True(t, ok)
	return call
}

func TestResolve(t *testing.T) {
	testCases := []struct {
		name     string
		expr     string
		expected map[string]any
	}{
		{
			name:     "choice of integers",
			expr:     "HPO(choice(128, 256))",
			expected: map[string]any{"hpo": map[string]any{"type": "categorical", "values": []any{128, 256}}},
		},
		{
			name:     "choice of strings",
			expr:     `HPO(choice("relu", "tanh"))`,
			expected: map[string]any{"hpo": map[string]any{"type": "categorical", "values": []any{"relu", "tanh"}}},
		},
		{
			name:     "range with named step",
			expr:     "HPO(range(0.3, 0.7, step=0.1))",
			expected: map[string]any{"hpo": map[string]any{"type": "range", "start": 0.3, "end": 0.7, "step": 0.1}},
		},
		{
			name:     "range with positional step",
			expr:     "HPO(range(16, 64, 16))",
			expected: map[string]any{"hpo": map[string]any{"type": "range", "start": 16, "end": 64, "step": 16}},
		},
		{
			name:     "range without step",
			expr:     "HPO(range(1, 5))",
			expected: map[string]any{"hpo": map[string]any{"type": "range", "start": 1, "end": 5}},
		},
		{
			name:     "log range in scientific notation",
			expr:     "HPO(log_range(1e-4, 1e-2))",
			expected: map[string]any{"hpo": map[string]any{"type": "log_range", "low": 0.0001, "high": 0.01}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := Resolve(hpoCall(t, tc.expr), literal)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, h.Plain())
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		expr   string
		detail string
	}{
		{name: "plain value", expr: "HPO(128)", detail: "not a plain value"},
		{name: "no space", expr: "HPO()", detail: "exactly one search space"},
		{name: "unknown space", expr: "HPO(uniform(0, 1))", detail: `Unknown search space "uniform"`},
		{name: "empty choice", expr: "HPO(choice())", detail: "at least one value"},
		{name: "nested hpo", expr: "HPO(choice(HPO(choice(1))))", detail: "cannot be nested"},
		{name: "range missing end", expr: "HPO(range(1))", detail: "requires end"},
		{name: "range reversed", expr: "HPO(range(5, 1))", detail: "greater than start"},
		{name: "range non-numeric", expr: `HPO(range("a", 1))`, detail: "start must be a number"},
		{name: "range negative step", expr: "HPO(range(1, 5, step=-1))", detail: "step must be positive"},
		{name: "range unknown argument", expr: "HPO(range(1, 5, stride=1))", detail: `no argument "stride"`},
		{name: "range too many", expr: "HPO(range(1, 5, 1, 2))", detail: "at most 3 arguments"},
		{name: "log range non-positive low", expr: "HPO(log_range(0, 1))", detail: "low must be positive"},
		{name: "log range reversed", expr: "HPO(log_range(0.1, 0.01))", detail: "greater than low"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(hpoCall(t, tc.expr), literal)
			require.Error(t, err)

			var vErr *diag.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, "Invalid HPO expression", vErr.Summary())
			assert.Contains(t, vErr.Detail(), tc.detail)
		})
	}
}

func TestIsHPO(t *testing.T) {
	assert.True(t, IsHPO(hpoCall(t, "HPO(choice(1))")))
	assert.False(t, IsHPO(hpoCall(t, "Dense(1)")))
	assert.False(t, IsHPO(&syntax.Str{Value: "HPO"}))
}
