package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/neuraldsl/internal/model"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// DefaultProjectFile is the project file looked up in the working directory.
const DefaultProjectFile = "neural.hcl"

// Project holds the settings of a neural.hcl file.
type Project struct {
	Backend   string
	LogLevel  string
	LogFormat string
	// TrainingDefaults fill the training_config keys a network does not set.
	// Nil when the file has no training_defaults block.
	TrainingDefaults *model.Params
}

// hclProjectFile represents the top-level structure of a project file for decoding.
type hclProjectFile struct {
	Backend          *string              `hcl:"backend,optional"`
	LogLevel         *string              `hcl:"log_level,optional"`
	LogFormat        *string              `hcl:"log_format,optional"`
	TrainingDefaults *hclTrainingDefaults `hcl:"training_defaults,block"`
}

type hclTrainingDefaults struct {
	Attrs hcl.Attributes `hcl:",remain"`
}

// FindProject returns the path of the default project file in dir, or "" when
// there is none.
func FindProject(dir string) string {
	path := filepath.Join(dir, DefaultProjectFile)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return ""
}

// LoadProject parses and decodes a project file.
func LoadProject(path string) (*Project, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("project file %s does not exist", path)
	}

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse project file %s: %w", path, diags)
	}

	var parsed hclProjectFile
	diags = gohcl.DecodeBody(hclFile.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode project file %s: %w", path, diags)
	}

	p := &Project{
		Backend:   deref(parsed.Backend),
		LogLevel:  deref(parsed.LogLevel),
		LogFormat: deref(parsed.LogFormat),
	}
	if parsed.TrainingDefaults != nil {
		defaults, err := trainingDefaults(parsed.TrainingDefaults.Attrs)
		if err != nil {
			return nil, fmt.Errorf("error in training_defaults of %s: %w", path, err)
		}
		p.TrainingDefaults = defaults
	}
	return p, nil
}

// apply fills the fields of cfg the command line left empty.
func (p *Project) apply(cfg Config) Config {
	if p == nil {
		return cfg
	}
	if cfg.Backend == "" {
		cfg.Backend = p.Backend
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = p.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = p.LogFormat
	}
	return cfg
}

// trainingDefaults evaluates the attributes in source order.
func trainingDefaults(attrs hcl.Attributes) (*model.Params, error) {
	sorted := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		sorted = append(sorted, attr)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Range.Start.Byte < sorted[j].Range.Start.Byte
	})

	out := model.NewParams()
	for _, attr := range sorted {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		v, err := fromCty(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", attr.Name, err)
		}
		out.Set(attr.Name, v)
	}
	return out, nil
}

// fromCty converts an evaluated attribute to a model value. Numbers that fit
// an integer become Int.
func fromCty(val cty.Value) (model.Value, error) {
	if val.IsNull() || !val.IsWhollyKnown() {
		return nil, errors.New("value must be known and not null")
	}

	ty := val.Type()
	switch {
	case ty == cty.Number:
		var i int64
		if err := gocty.FromCtyValue(val, &i); err == nil {
			return model.Int(i), nil
		}
		var f float64
		if err := gocty.FromCtyValue(val, &f); err != nil {
			return nil, err
		}
		return model.Float(f), nil

	case ty == cty.String:
		var s string
		if err := gocty.FromCtyValue(val, &s); err != nil {
			return nil, err
		}
		return model.String(s), nil

	case ty == cty.Bool:
		var b bool
		if err := gocty.FromCtyValue(val, &b); err != nil {
			return nil, err
		}
		return model.Bool(b), nil

	case ty.IsTupleType() || ty.IsListType():
		var tuple model.Tuple
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			var n int
			if err := gocty.FromCtyValue(elem, &n); err != nil {
				return nil, fmt.Errorf("tuple elements must be integers: %w", err)
			}
			tuple = append(tuple, n)
		}
		return tuple, nil
	}
	return nil, fmt.Errorf("unsupported value of type %s", ty.FriendlyName())
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
