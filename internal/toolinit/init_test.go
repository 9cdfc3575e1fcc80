package toolinit

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/xiaokk2024/mymanus1/tools"
	"github.com/xiaokk2024/mymanus1/tools/registry"
)

func TestRegisterAll_CatalogueOrder(t *testing.T) {
	r := registry.New()
	if err := RegisterAll(r, Deps{FigureDir: t.TempDir()}); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}

	want := []string{"python_inter", "fig_inter", "sql_inter", "extract_data", "get_answer", "get_answer_github"}
	got := r.List()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected catalogue %v", got)
	}

	for _, def := range r.Definitions() {
		if def.Description == "" {
			t.Errorf("tool %s has no description", def.Name)
		}
		if def.Parameters["type"] != "object" {
			t.Errorf("tool %s schema is not an object: %v", def.Name, def.Parameters)
		}
	}
}

func TestRegisterAll_UnconfiguredToolsReportErrors(t *testing.T) {
	r := registry.New()
	if err := RegisterAll(r, Deps{FigureDir: t.TempDir()}); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	ns := tools.NewNamespace()

	res := r.Dispatch(context.Background(), tools.ToolCall{
		ID:        "1",
		Name:      "sql_inter",
		Arguments: json.RawMessage(`{"sql_query": "SHOW TABLES;"}`),
	}, ns)
	if !res.Failed() || !strings.Contains(res.Content, tools.CodeNotConfigured) {
		t.Fatalf("expected NOT_CONFIGURED, got %q", res.Content)
	}

	res = r.Dispatch(context.Background(), tools.ToolCall{
		ID:        "2",
		Name:      "get_answer",
		Arguments: json.RawMessage(`{"q": "What is MCP?"}`),
	}, ns)
	if !res.Failed() || !strings.Contains(res.Content, tools.CodeNotConfigured) {
		t.Fatalf("expected NOT_CONFIGURED, got %q", res.Content)
	}

	res = r.Dispatch(context.Background(), tools.ToolCall{
		ID:        "3",
		Name:      "python_inter",
		Arguments: json.RawMessage(`{"py_code": "2+2"}`),
	}, ns)
	if res.Content != "4" {
		t.Fatalf("expected 4, got %q", res.Content)
	}
}

func TestNewDeps_WithoutSearchCredentials(t *testing.T) {
	deps := NewDeps(context.Background(), Settings{}, nil, nil)
	if deps.Searcher != nil {
		t.Fatalf("expected no searcher without credentials")
	}
	if deps.Pages == nil || deps.Readmes == nil || deps.Counter == nil || deps.DB == nil {
		t.Fatalf("expected collaborators to be built: %+v", deps)
	}
	if err := deps.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
