package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/olekukonko/tablewriter"
	"github.com/specialistvlad/neuraldsl/internal/app"
	"github.com/specialistvlad/neuraldsl/internal/diag"
)

const diagnosticWidth = 78

// writeDiagnostics renders the errors of failed units with source snippets.
func writeDiagnostics(w io.Writer, units []*app.Unit) error {
	files := make(map[string]*hcl.File)
	var diags hcl.Diagnostics
	for _, u := range units {
		if u.Err == nil {
			continue
		}
		for name, f := range u.Files() {
			files[name] = f
		}
		diags = append(diags, diag.Diagnostics(u.Err)...)
	}
	if len(diags) == 0 {
		return nil
	}
	return hcl.NewDiagnosticTextWriter(w, files, diagnosticWidth, false).WriteDiagnostics(diags)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("   ")
	return table
}

func title(u *app.Unit) string {
	if u.Network != nil && u.Network.Name != "" {
		return fmt.Sprintf("%s (%s)", u.Network.Name, u.Path)
	}
	return u.Path
}

// writeShapeTable prints one row per layer and the parameter total.
func writeShapeTable(w io.Writer, u *app.Unit) {
	fmt.Fprintln(w, title(u))

	var data [][]string
	for _, s := range u.Report.Layers {
		data = append(data, []string{
			strconv.Itoa(s.Index),
			s.Layer,
			s.InputShape.String(),
			s.OutputShape.String(),
			strconv.FormatInt(s.Params, 10),
		})
	}
	table := newTable(w, []string{"#", "LAYER", "INPUT SHAPE", "OUTPUT SHAPE", "PARAMS"})
	table.AppendBulk(data)
	table.Render()

	fmt.Fprintf(w, "Total params: %d\n\n", u.Report.TotalParams)
}

// writeDebugTable prints the debug trace. Unmeasured values show as "-".
func writeDebugTable(w io.Writer, u *app.Unit) {
	fmt.Fprintln(w, title(u))

	var data [][]string
	for _, e := range u.Network.ShapeInfo {
		data = append(data, []string{
			e.Layer,
			e.OutputShape.String(),
			orDash(e.MeanActivation),
			orDash(e.ActiveRatio),
			orDash(e.Anomaly),
		})
	}
	table := newTable(w, []string{"LAYER", "OUTPUT SHAPE", "MEAN ACTIVATION", "ACTIVE RATIO", "ANOMALY"})
	table.AppendBulk(data)
	table.Render()
	fmt.Fprintln(w)
}

func orDash[T any](p *T) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}
