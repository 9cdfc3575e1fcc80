package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.starlark.net/starlark"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/xiaokk2024/mymanus1/tools/base"
)

// DefaultFigureDir is where fig_inter writes images.
const DefaultFigureDir = "pics"

// FigureParams defines the parameters for fig_inter
type FigureParams struct {
	PyCode string `json:"py_code" schema:"required" description:"The plotting code to run. It must bind a chart dict to the variable named by fname."`
	Fname  string `json:"fname" schema:"required,pattern:^[A-Za-z_][A-Za-z0-9_]*$" description:"Name of the variable holding the chart, for example 'fig'. Also used as the image file name."`
}

// FigureTool runs plotting code and saves the chart it describes as a PNG.
type FigureTool struct {
	base.BaseTool
	dir      string
	logger   *zap.Logger
	maxSteps uint64
}

// NewFigureTool creates the fig_inter tool writing into dir.
func NewFigureTool(dir string, logger *zap.Logger) *FigureTool {
	if dir == "" {
		dir = DefaultFigureDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FigureTool{
		BaseTool: base.BaseTool{
			ToolName: "fig_inter",
			ToolDesc: "Call this function when the user needs a chart. It runs the given plotting code " +
				"(Python-style Starlark, no imports) and saves the chart as a PNG image.\n\n" +
				"Arguments:\n" +
				"1. `py_code`: a complete, self-contained script that defines its own data and binds a " +
				"chart dict to the variable named by `fname`;\n" +
				"2. `fname`: the variable name, for example 'fig'.\n\n" +
				"The chart dict has the keys: `type` (\"line\", \"bar\" or \"scatter\"), `x` (list of " +
				"numbers or category labels, optional), `y` (list of numbers, or dict of series name to " +
				"list), and optional `title`, `xlabel`, `ylabel`. Do not save the image yourself.\n\n" +
				"Example:\n" +
				"```python\n" +
				"xs = [1, 2, 3]\n" +
				"fig = {\"type\": \"line\", \"x\": xs, \"y\": [4, 5, 6], \"title\": \"Line Plot\"}\n" +
				"```",
		},
		dir:      dir,
		logger:   logger,
		maxSteps: defaultMaxSteps,
	}
}

// Parameters returns the parameters struct
func (t *FigureTool) Parameters() interface{} {
	return &FigureParams{}
}

// Execute runs the plotting code against a fresh namespace.
func (t *FigureTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	return t.ExecuteInNamespace(ctx, params, NewNamespace())
}

// ExecuteInNamespace runs the plotting code against the session namespace.
func (t *FigureTool) ExecuteInNamespace(ctx context.Context, params json.RawMessage, ns *Namespace) (string, error) {
	var args FigureParams
	if err := DecodeParams(params, &args); err != nil {
		return "", err
	}

	env := namespaceEnv(ns)
	if len(env.skipped) > 0 {
		t.logger.Warn("namespace values hidden from script", zap.Strings("names", env.skipped))
	}
	globals, _, err := execScript(ctx, t.Name(), args.PyCode, env.globals, t.maxSteps)
	if err != nil {
		return "", NewToolError(CodeExecutionFailed, "Plotting code failed").
			WithDetail("error", scriptError(err))
	}
	env.commit(ns, globals)

	value, ok := globals[args.Fname]
	if !ok {
		value, ok = env.globals[args.Fname]
	}
	if !ok {
		return fmt.Sprintf("The code ran, but no chart named '%s' was found. Bind the chart dict to that variable in py_code.", args.Fname), nil
	}

	spec, err := parseChartSpec(value)
	if err != nil {
		return fmt.Sprintf("The code ran, but variable '%s' is not a valid chart: %v", args.Fname, err), nil
	}

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return "", NewToolError(CodeExecutionFailed, "Failed to create figure directory").
			WithDetail("error", err.Error())
	}
	path := filepath.Join(t.dir, args.Fname+".png")
	if err := renderChart(spec, path); err != nil {
		return "", NewToolError(CodeExecutionFailed, "Failed to render chart").
			WithDetail("error", err.Error())
	}

	t.logger.Info("figure saved", zap.String("path", path))
	return fmt.Sprintf("Figure saved, relative path: %s", path), nil
}

// Chart kinds.
const (
	chartLine    = "line"
	chartBar     = "bar"
	chartScatter = "scatter"
)

type chartSeries struct {
	Name string
	Y    []float64
}

type chartSpec struct {
	Kind   string
	Title  string
	XLabel string
	YLabel string
	X      []float64
	Labels []string
	Series []chartSeries
}

func parseChartSpec(v starlark.Value) (*chartSpec, error) {
	d, ok := v.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("expected a dict, got %s", v.Type())
	}

	spec := &chartSpec{Kind: chartLine}
	if s, ok := dictString(d, "type"); ok {
		spec.Kind = s
	}
	switch spec.Kind {
	case chartLine, chartBar, chartScatter:
	default:
		return nil, fmt.Errorf("unsupported chart type %q", spec.Kind)
	}
	spec.Title, _ = dictString(d, "title")
	spec.XLabel, _ = dictString(d, "xlabel")
	spec.YLabel, _ = dictString(d, "ylabel")

	yv, found, _ := d.Get(starlark.String("y"))
	if !found {
		return nil, fmt.Errorf("missing key \"y\"")
	}
	switch y := yv.(type) {
	case *starlark.Dict:
		for _, item := range y.Items() {
			name, _ := starlark.AsString(item[0])
			values, err := floats(item[1])
			if err != nil {
				return nil, fmt.Errorf("series %s: %w", name, err)
			}
			spec.Series = append(spec.Series, chartSeries{Name: name, Y: values})
		}
	default:
		values, err := floats(y)
		if err != nil {
			return nil, fmt.Errorf("y: %w", err)
		}
		spec.Series = []chartSeries{{Y: values}}
	}
	if len(spec.Series) == 0 || len(spec.Series[0].Y) == 0 {
		return nil, fmt.Errorf("no data to plot")
	}
	n := len(spec.Series[0].Y)
	for _, s := range spec.Series {
		if len(s.Y) != n {
			return nil, fmt.Errorf("series have different lengths")
		}
	}

	if xv, found, _ := d.Get(starlark.String("x")); found {
		if labels, ok := stringList(xv); ok {
			spec.Labels = labels
		} else {
			x, err := floats(xv)
			if err != nil {
				return nil, fmt.Errorf("x: %w", err)
			}
			spec.X = x
		}
	}
	if len(spec.X) == 0 {
		spec.X = make([]float64, n)
		for i := range spec.X {
			spec.X[i] = float64(i)
		}
	}
	if len(spec.X) != n || (spec.Labels != nil && len(spec.Labels) != n) {
		return nil, fmt.Errorf("x and y have different lengths")
	}

	return spec, nil
}

func renderChart(spec *chartSpec, path string) error {
	p := plot.New()
	p.Title.Text = spec.Title
	p.X.Label.Text = spec.XLabel
	p.Y.Label.Text = spec.YLabel
	p.Legend.Top = true

	named := len(spec.Series) > 1 || spec.Series[0].Name != ""

	switch spec.Kind {
	case chartBar:
		width := vg.Points(20)
		for i, s := range spec.Series {
			bars, err := plotter.NewBarChart(plotter.Values(s.Y), width)
			if err != nil {
				return err
			}
			bars.Color = plotutil.Color(i)
			bars.LineStyle.Width = vg.Length(0)
			bars.Offset = width * vg.Length(i-len(spec.Series)/2)
			p.Add(bars)
			if named {
				p.Legend.Add(s.Name, bars)
			}
		}
		if spec.Labels != nil {
			p.NominalX(spec.Labels...)
		}
	default:
		for i, s := range spec.Series {
			xys := make(plotter.XYs, len(s.Y))
			for j := range s.Y {
				xys[j].X = spec.X[j]
				xys[j].Y = s.Y[j]
			}
			if spec.Kind == chartScatter {
				sc, err := plotter.NewScatter(xys)
				if err != nil {
					return err
				}
				sc.GlyphStyle.Color = plotutil.Color(i)
				sc.GlyphStyle.Shape = plotutil.Shape(i)
				p.Add(sc)
				if named {
					p.Legend.Add(s.Name, sc)
				}
				continue
			}
			line, err := plotter.NewLine(xys)
			if err != nil {
				return err
			}
			line.LineStyle.Color = plotutil.Color(i)
			line.LineStyle.Width = vg.Points(1.5)
			p.Add(line)
			if named {
				p.Legend.Add(s.Name, line)
			}
		}
		if spec.Labels != nil {
			p.NominalX(spec.Labels...)
		}
	}

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

func dictString(d *starlark.Dict, key string) (string, bool) {
	v, found, _ := d.Get(starlark.String(key))
	if !found {
		return "", false
	}
	return starlark.AsString(v)
}

func floats(v starlark.Value) ([]float64, error) {
	iter, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %s", v.Type())
	}
	it := iter.Iterate()
	defer it.Done()

	var out []float64
	var elem starlark.Value
	for it.Next(&elem) {
		f, ok := starlark.AsFloat(elem)
		if !ok {
			return nil, fmt.Errorf("non-numeric value %s", elem.String())
		}
		out = append(out, f)
	}
	return out, nil
}

// stringList returns the elements of v when every one is a string.
func stringList(v starlark.Value) ([]string, bool) {
	iter, ok := v.(starlark.Iterable)
	if !ok {
		return nil, false
	}
	it := iter.Iterate()
	defer it.Done()

	var out []string
	var elem starlark.Value
	for it.Next(&elem) {
		s, ok := starlark.AsString(elem)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, len(out) > 0
}
