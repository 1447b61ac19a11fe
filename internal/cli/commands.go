package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/neuraldsl/internal/app"
	"github.com/spf13/cobra"
)

func newCompileCmd(opts *options) *cobra.Command {
	var format, outFile string
	cmd := &cobra.Command{
		Use:   "compile PATH...",
		Short: "Validate source files and print their model descriptions",
		Long: `Compile parses, validates and shape-checks every source file and prints
the resulting model description. Directories are searched for .neural, .nr
and .rnr files. Files are compiled concurrently.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, app.Config{Output: format})
			if err != nil {
				return err
			}
			units, err := compile(cmd, a, args)
			if err != nil {
				return err
			}

			docs := make([]any, len(units))
			for i, u := range units {
				docs[i] = u.Document()
			}
			return withOutput(cmd, outFile, func(w io.Writer) error {
				return app.Encode(w, a.Config().Output, docs...)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", app.FormatJSON, "Output format: json or yaml")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the output to a file instead of stdout")
	return cmd
}

func newShapesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "shapes PATH...",
		Short: "Print the shape trace and parameter counts of networks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, app.Config{})
			if err != nil {
				return err
			}
			units, err := compile(cmd, a, args)
			if err != nil {
				return err
			}
			for _, u := range networks(a, units) {
				writeShapeTable(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
}

func newVisualizeCmd(opts *options) *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "visualize PATH...",
		Short: "Write the architecture graph of networks in DOT format",
		Long: `Visualize writes one DOT digraph per network: an input node followed by one
node per layer, labelled with the layer type and output shape. Render it with
Graphviz, for example: neuraldsl visualize model.neural | dot -Tsvg > model.svg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, app.Config{})
			if err != nil {
				return err
			}
			units, err := compile(cmd, a, args)
			if err != nil {
				return err
			}
			return withOutput(cmd, outFile, func(w io.Writer) error {
				for _, u := range networks(a, units) {
					out, err := u.DOT()
					if err != nil {
						return err
					}
					if _, err := w.Write(out); err != nil {
						return err
					}
					fmt.Fprintln(w)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the graph to a file instead of stdout")
	return cmd
}

func newDebugCmd(opts *options) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "debug PATH...",
		Short: "Print the debug shape trace of networks",
		Long: `Debug compiles networks in debug mode. The trace carries the runtime
statistics columns (mean activation, active ratio, anomaly); they stay empty
until a runtime measures them. With --format the full model description is
printed instead of the table.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, app.Config{Debug: true, Output: format})
			if err != nil {
				return err
			}
			units, err := compile(cmd, a, args)
			if err != nil {
				return err
			}
			nets := networks(a, units)
			if format != "" {
				docs := make([]any, len(nets))
				for i, u := range nets {
					docs[i] = u.Document()
				}
				return app.Encode(cmd.OutOrStdout(), a.Config().Output, docs...)
			}
			for _, u := range nets {
				writeDebugTable(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Print the model description as json or yaml instead of a table")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "neuraldsl version %s\n", Version)
		},
	}
}

// networks keeps the network units; research files have no shapes.
func networks(a *app.App, units []*app.Unit) []*app.Unit {
	var out []*app.Unit
	for _, u := range units {
		if u.Kind != app.SourceNetwork {
			a.Logger().Warn("Skipping research file.", "file", u.Path)
			continue
		}
		out = append(out, u)
	}
	return out
}

// withOutput calls write with stdout or, when path is set, a new file.
func withOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		if err := write(cmd.OutOrStdout()); err != nil {
			return compileError("%v", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return compileError("failed to create output file: %v", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return compileError("failed to write %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		return compileError("failed to write %s: %v", path, err)
	}
	return nil
}
