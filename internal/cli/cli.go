package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/specialistvlad/neuraldsl/internal/app"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// Exit codes.
const (
	ExitCompile = 1
	ExitUsage   = 2
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: ExitUsage, Message: fmt.Sprintf(format, args...)}
}

func compileError(format string, args ...any) *ExitError {
	return &ExitError{Code: ExitCompile, Message: fmt.Sprintf(format, args...)}
}

// options are the flags shared by every command.
type options struct {
	backend   string
	logLevel  string
	logFormat string
	project   string
	workers   int
}

// Execute runs the command line. Every failure is returned as an *ExitError.
func Execute(ctx context.Context, args []string, outW, errW io.Writer) error {
	root := NewRootCommand(outW, errW)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr
		}
		// Unknown commands and argument count errors come from cobra itself.
		return &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	return nil
}

// NewRootCommand builds the command tree. Results go to outW; logs and
// diagnostics go to errW.
func NewRootCommand(outW, errW io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "neuraldsl",
		Short:         "Compiler front end for the Neural network description language",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	rootCmd.SetOut(outW)
	rootCmd.SetErr(errW)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%v", err)
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.backend, "backend", "b", "", "Target backend for networks without a framework: tensorflow, pytorch or onnx")
	flags.StringVar(&opts.logLevel, "log-level", "", "Logging level: debug, info, warn or error (default info)")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log output format: text or json (default text)")
	flags.StringVar(&opts.project, "project", app.DefaultProjectFile, "Project settings file")
	flags.IntVarP(&opts.workers, "workers", "j", 0, "Number of files compiled at once (default number of CPUs)")

	rootCmd.AddCommand(
		newCompileCmd(opts),
		newShapesCmd(opts),
		newVisualizeCmd(opts),
		newDebugCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// newApp creates the application for a command. The project file is only
// required when --project was given explicitly.
func newApp(cmd *cobra.Command, opts *options, cfg app.Config) (*app.App, error) {
	cfg.Backend = opts.backend
	cfg.LogLevel = opts.logLevel
	cfg.LogFormat = opts.logFormat
	cfg.Workers = opts.workers

	if cmd.Flags().Changed("project") {
		cfg.ProjectFile = opts.project
	} else {
		cfg.ProjectFile = app.FindProject(".")
	}

	a, err := app.NewApp(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return nil, usageError("%v", err)
	}
	return a, nil
}

// compile runs the pipeline and renders the errors of failed units. Warnings
// reach the user through the log. It fails when a file cannot be read or any
// unit has an error.
func compile(cmd *cobra.Command, a *app.App, paths []string) ([]*app.Unit, error) {
	units, err := a.Compile(cmd.Context(), paths)
	if err != nil {
		return nil, compileError("%v", err)
	}
	if err := writeDiagnostics(cmd.ErrOrStderr(), units); err != nil {
		return nil, compileError("failed to print diagnostics: %v", err)
	}

	failed := 0
	for _, u := range units {
		if u.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return nil, compileError("compilation failed: %d of %d files had errors", failed, len(units))
	}
	return units, nil
}
