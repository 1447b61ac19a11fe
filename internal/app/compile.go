package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/neuraldsl/internal/ctxlog"
	"github.com/specialistvlad/neuraldsl/internal/diag"
	"github.com/specialistvlad/neuraldsl/internal/fsutil"
	"github.com/specialistvlad/neuraldsl/internal/model"
	"github.com/specialistvlad/neuraldsl/internal/parser"
	"github.com/specialistvlad/neuraldsl/internal/shape"
	"github.com/specialistvlad/neuraldsl/internal/syntax"
	"github.com/specialistvlad/neuraldsl/internal/transform"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
	xtransform "golang.org/x/text/transform"
)

// SourceKind tells what a source file must declare.
type SourceKind int

const (
	SourceNetwork SourceKind = iota
	SourceResearch
)

func (k SourceKind) String() string {
	if k == SourceResearch {
		return "research"
	}
	return "network"
}

var sourceKinds = map[string]SourceKind{
	".neural": SourceNetwork,
	".nr":     SourceNetwork,
	".rnr":    SourceResearch,
}

// SourceExtensions lists the recognised file extensions.
func SourceExtensions() []string {
	return []string{".neural", ".nr", ".rnr"}
}

// SourceKindOf maps a file name to its kind by extension.
func SourceKindOf(path string) (SourceKind, error) {
	k, ok := sourceKinds[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return 0, fmt.Errorf("unsupported file extension %q for %s: expected one of %s",
			filepath.Ext(path), path, strings.Join(SourceExtensions(), ", "))
	}
	return k, nil
}

// Unit is the outcome of compiling one source file. Err holds the syntax,
// validation, macro or shape error that stopped it, if any.
type Unit struct {
	ID     string
	Path   string
	Kind   SourceKind
	Source []byte

	Network  *model.Network
	Research *model.Research
	Macros   []string
	// Report is set for networks whose shapes were propagated.
	Report *shape.Report

	Warnings hcl.Diagnostics
	Err      error
}

// Document returns the compiled description: the network or research block.
func (u *Unit) Document() any {
	if u.Kind == SourceResearch {
		return u.Research
	}
	return u.Network
}

// Diagnostics returns the warnings followed by the error, if any.
func (u *Unit) Diagnostics() hcl.Diagnostics {
	out := append(hcl.Diagnostics(nil), u.Warnings...)
	if u.Err != nil {
		out = append(out, diag.Diagnostics(u.Err)...)
	}
	return out
}

// Files maps the unit's file name to its source for diagnostic snippets.
func (u *Unit) Files() map[string]*hcl.File {
	return map[string]*hcl.File{u.Path: {Bytes: u.Source}}
}

// Compile compiles every file named by paths, searching directories for
// source files. Files are compiled concurrently, each with its own
// transformer and macro registry; units are returned in path order. A unit
// that fails to compile carries its error; the returned error is reserved for
// failures to find or read the files.
func (a *App) Compile(ctx context.Context, paths []string) ([]*Unit, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	files, err := fsutil.ExpandPaths(paths, SourceExtensions()...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no source files found in %s", strings.Join(paths, ", "))
	}
	kinds := make([]SourceKind, len(files))
	for i, f := range files {
		if kinds[i], err = SourceKindOf(f); err != nil {
			return nil, err
		}
	}
	a.logger.Debug("Source files discovered.", "count", len(files), "workers", a.config.Workers)

	units := make([]*Unit, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Workers)
	for i, path := range files {
		g.Go(func() error {
			src, err := readSource(path)
			if err != nil {
				return err
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			units[i] = a.CompileSource(gctx, path, kinds[i], src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, u := range units {
		if u.Err != nil {
			failed++
		}
	}
	a.logger.Info("Compilation finished.", "files", len(units), "failed", failed)
	return units, nil
}

// readSource reads a file as UTF-8. A byte order mark is honoured and removed,
// so UTF-16 sources are transcoded.
func readSource(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	src, _, err := xtransform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return src, nil
}

// CompileSource compiles one source. It parses and transforms the file,
// checks it declares what its kind requires and, for networks, applies the
// project's training defaults and propagates shapes.
func (a *App) CompileSource(ctx context.Context, path string, kind SourceKind, src []byte) *Unit {
	u := &Unit{ID: uuid.NewString(), Path: path, Kind: kind, Source: src}
	ctx = ctxlog.With(ctx, "unit", u.ID, "file", path)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Compiling unit.", "kind", kind.String())

	tr := transform.New(logger)
	defer func() {
		u.Warnings = tr.Diagnostics().HCL()
		if u.Err != nil {
			logger.Debug("Unit failed.", "error", u.Err)
		}
	}()

	f, err := parser.ParseFile(path, src)
	if err != nil {
		u.Err = err
		return u
	}
	if u.Err = checkDecls(f, kind); u.Err != nil {
		return u
	}
	res, err := tr.File(f)
	if err != nil {
		u.Err = err
		return u
	}
	u.Macros = res.Macros

	if kind == SourceResearch {
		u.Research = res.Research
		logger.Info("Research block compiled.", "metrics", res.Research.Metrics.Len())
		return u
	}

	net, decl := res.Network, networkDecl(f)
	if decl.Framework == nil && a.config.Backend != "" {
		// The configuration was validated, so the backend parses.
		net.Framework, _ = model.ParseBackend(a.config.Backend)
	}
	if a.project != nil && applyTrainingDefaults(net, a.project.TrainingDefaults) {
		if err := tr.ValidateTraining(net.TrainingConfig, decl.Rng); err != nil {
			logger.Warn("Project training defaults rejected.", "project", a.config.ProjectFile)
			u.Err = err
			return u
		}
	}

	prop := shape.New(shape.Options{
		Backend:     net.Framework,
		Debug:       a.config.Debug,
		Macros:      tr.Registry(),
		Diagnostics: tr.Diagnostics(),
		Logger:      logger,
	})
	if _, err := prop.Run(net); err != nil {
		u.Err = err
		return u
	}
	report, err := prop.GenerateReport()
	if err != nil {
		u.Err = err
		return u
	}
	u.Network, u.Report = net, report

	logger.Info("Network compiled.", "name", net.Name, "layers", len(net.Layers), "params", report.TotalParams)
	return u
}

// checkDecls verifies that f declares the block its kind requires and not the
// other one.
func checkDecls(f *syntax.File, kind SourceKind) error {
	var network, research syntax.Decl
	for _, d := range f.Decls {
		switch d.(type) {
		case *syntax.Network:
			network = d
		case *syntax.Research:
			research = d
		}
	}

	want, other := network, research
	if kind == SourceResearch {
		want, other = research, network
	}
	if other != nil {
		return diag.Validationf(other.Range(), "Unexpected "+otherKind(kind).String()+" block",
			"A %s file cannot declare a %s block", kind, otherKind(kind))
	}
	if want == nil {
		start := hcl.Pos{Line: 1, Column: 1}
		return diag.Validationf(hcl.Range{Filename: f.Rng.Filename, Start: start, End: start},
			"Missing "+kind.String(), "The file does not declare a %s block", kind)
	}
	return nil
}

func otherKind(k SourceKind) SourceKind {
	if k == SourceResearch {
		return SourceNetwork
	}
	return SourceResearch
}

// networkDecl returns the network block of a file checkDecls accepted as a
// network source.
func networkDecl(f *syntax.File) *syntax.Network {
	for _, d := range f.Decls {
		if n, ok := d.(*syntax.Network); ok {
			return n
		}
	}
	return &syntax.Network{Rng: f.Rng}
}

// applyTrainingDefaults sets the default keys the network's training config
// lacks and reports whether any were set. A network without a train block
// gets one when defaults exist.
func applyTrainingDefaults(net *model.Network, defaults *model.Params) bool {
	if defaults == nil || defaults.Len() == 0 {
		return false
	}
	if net.TrainingConfig == nil {
		net.TrainingConfig = model.NewParams()
	}
	applied := false
	defaults.Each(func(key string, v model.Value) {
		if !net.TrainingConfig.Has(key) {
			net.TrainingConfig.Set(key, model.Clone(v))
			applied = true
		}
	})
	return applied
}

// Failed reports whether any unit has an error.
func Failed(units []*Unit) bool {
	for _, u := range units {
		if u.Err != nil {
			return true
		}
	}
	return false
}

// IsCompileError reports whether err is a diagnostic raised by the compiler.
func IsCompileError(err error) bool {
	var (
		syntaxErr *diag.SyntaxError
		valErr    *diag.ValidationError
		shapeErr  *diag.ShapeError
		macroErr  *diag.MacroResolutionError
	)
	return errors.As(err, &syntaxErr) || errors.As(err, &valErr) ||
		errors.As(err, &shapeErr) || errors.As(err, &macroErr)
}
