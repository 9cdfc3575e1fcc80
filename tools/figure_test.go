package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.starlark.net/starlark"
)

func runFigure(t *testing.T, dir string, ns *Namespace, code, fname string) (string, error) {
	t.Helper()
	params, _ := json.Marshal(FigureParams{PyCode: code, Fname: fname})
	return NewFigureTool(dir, nil).ExecuteInNamespace(context.Background(), params, ns)
}

func TestFigure_SavesLineChart(t *testing.T) {
	dir := t.TempDir()
	code := "xs = [1, 2, 3]\nfig = {'type': 'line', 'x': xs, 'y': [4, 5, 6], 'title': 'Line Plot'}"

	got, err := runFigure(t, dir, NewNamespace(), code, "fig")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(dir, "fig.png")
	if !strings.Contains(got, path) {
		t.Fatalf("expected path in result, got %q", got)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected non-empty image at %s (err %v)", path, err)
	}
}

func TestFigure_BarChartWithSeriesAndLabels(t *testing.T) {
	dir := t.TempDir()
	code := "chart = {'type': 'bar', 'x': ['a', 'b'], 'y': {'2023': [1, 2], '2024': [3, 4]}}"

	if _, err := runFigure(t, dir, NewNamespace(), code, "chart"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "chart.png")); err != nil {
		t.Fatalf("expected image: %v", err)
	}
}

func TestFigure_UsesNamespaceData(t *testing.T) {
	dir := t.TempDir()
	ns := NewNamespace()
	ns.Set("ages", []interface{}{int64(30), int64(40), int64(50)})

	code := "fig = {'type': 'scatter', 'y': ages}"
	if _, err := runFigure(t, dir, ns, code, "fig"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ns.Get("fig"); !ok {
		t.Fatalf("expected fig to be stored in the namespace")
	}
}

func TestFigure_MissingVariable(t *testing.T) {
	got, err := runFigure(t, t.TempDir(), NewNamespace(), "x = 1", "fig")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "no chart named 'fig'") {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestFigure_NotAChart(t *testing.T) {
	got, err := runFigure(t, t.TempDir(), NewNamespace(), "fig = 3", "fig")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "not a valid chart") {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestFigure_ScriptError(t *testing.T) {
	if _, err := runFigure(t, t.TempDir(), NewNamespace(), "fig = {'y': [1, 2]", "fig"); err == nil {
		t.Fatalf("expected syntax error")
	}
}

func TestParseChartSpec_Validation(t *testing.T) {
	mk := func(pairs ...interface{}) *starlark.Dict {
		d := starlark.NewDict(len(pairs) / 2)
		for i := 0; i < len(pairs); i += 2 {
			v, err := toStarlark(pairs[i+1])
			if err != nil {
				t.Fatalf("toStarlark: %v", err)
			}
			_ = d.SetKey(starlark.String(pairs[i].(string)), v)
		}
		return d
	}

	if _, err := parseChartSpec(mk("type", "pie", "y", []interface{}{1})); err == nil {
		t.Errorf("expected unsupported type error")
	}
	if _, err := parseChartSpec(mk("type", "line")); err == nil {
		t.Errorf("expected missing y error")
	}
	if _, err := parseChartSpec(mk("x", []interface{}{1, 2, 3}, "y", []interface{}{1, 2})); err == nil {
		t.Errorf("expected length mismatch error")
	}
	if _, err := parseChartSpec(mk("y", []interface{}{"a"})); err == nil {
		t.Errorf("expected non-numeric error")
	}

	spec, err := parseChartSpec(mk("y", []interface{}{1.5, 2}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Kind != chartLine || len(spec.X) != 2 || spec.X[1] != 1 {
		t.Fatalf("expected default line chart with index x, got %+v", spec)
	}
}
