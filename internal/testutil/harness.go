// Package testutil provides the harness used by the end-to-end tests: it
// lays out source files in a temporary directory and compiles them through
// the application pipeline.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/neuraldsl/internal/app"
	"github.com/stretchr/testify/require"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	Dir       string
	Units     []*app.Unit
}

// Unit returns the unit compiled from the named file.
func (r *HarnessResult) Unit(t *testing.T, name string) *app.Unit {
	t.Helper()
	want := filepath.Join(r.Dir, name)
	for _, u := range r.Units {
		if u.Path == want {
			return u
		}
	}
	require.FailNow(t, "no unit compiled from "+name)
	return nil
}

// RunCompileTest writes files into a temporary directory and compiles the
// whole directory. A project file can be passed under app.DefaultProjectFile;
// it is loaded, not compiled.
func RunCompileTest(t *testing.T, files map[string]string, cfg app.Config) *HarnessResult {
	t.Helper()
	return RunCompileTestWithContext(context.Background(), t, files, cfg)
}

// RunCompileTestWithContext is RunCompileTest with a caller provided context.
func RunCompileTestWithContext(ctx context.Context, t *testing.T, files map[string]string, cfg app.Config) *HarnessResult {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	if _, ok := files[app.DefaultProjectFile]; ok {
		cfg.ProjectFile = filepath.Join(dir, app.DefaultProjectFile)
	}

	a, logs := app.SetupAppTest(t, cfg)
	units, err := a.Compile(ctx, []string{dir})
	return &HarnessResult{
		LogOutput: logs.String(),
		Err:       err,
		Dir:       dir,
		Units:     units,
	}
}
