package testutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/specialistvlad/neuraldsl/internal/app"
	"github.com/specialistvlad/neuraldsl/internal/model"
	"github.com/stretchr/testify/require"
)

// RequireShapes checks the output shape of every top-level layer of a unit.
func RequireShapes(t *testing.T, u *app.Unit, want ...model.Shape) {
	t.Helper()
	require.NoError(t, u.Err)
	require.NotNil(t, u.Network)

	got := make([]model.Shape, len(u.Network.ShapeInfo))
	for i, e := range u.Network.ShapeInfo {
		got[i] = e.OutputShape
	}
	require.Equal(t, want, got)
}

// RequireUnitError checks that a unit failed with an error of the target's
// type whose message contains substr.
func RequireUnitError[T error](t *testing.T, u *app.Unit, substr string) T {
	t.Helper()
	require.Error(t, u.Err, "expected %s to fail", u.Path)

	var target T
	require.True(t, errors.As(u.Err, &target), "unexpected error type %T: %v", u.Err, u.Err)
	require.True(t, strings.Contains(u.Err.Error(), substr),
		"error %q does not contain %q", u.Err.Error(), substr)
	return target
}

// RequireLogged checks that the log output contains every substring.
func RequireLogged(t *testing.T, result *HarnessResult, substrs ...string) {
	t.Helper()
	for _, s := range substrs {
		require.True(t, strings.Contains(result.LogOutput, s), "expected %q in the log output", s)
	}
}
