package tools

import (
	"context"
	"encoding/json"
	"strings"

	"go.starlark.net/starlark"
	"go.uber.org/zap"

	"github.com/xiaokk2024/mymanus1/tools/base"
)

// PythonParams defines the parameters for python_inter
type PythonParams struct {
	PyCode string `json:"py_code" schema:"required" description:"The Python code to execute."`
}

// PythonTool runs code in the session namespace and reports its result.
//
// Code runs in a Python-like dialect (Starlark). The result is recovered in
// three tiers: the code is first evaluated as a single expression; failing
// that it is executed as statements and any newly bound variables are
// reported; failing that the last non-indented line is evaluated. This is a
// heuristic contract. Lists, dicts and sets in the namespace can be changed
// in place by later calls.
type PythonTool struct {
	base.BaseTool
	logger   *zap.Logger
	maxSteps uint64
}

// NewPythonTool creates the python_inter tool.
func NewPythonTool(logger *zap.Logger) *PythonTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PythonTool{
		BaseTool: base.BaseTool{
			ToolName: "python_inter",
			ToolDesc: "Call this function when the user needs a program written and run. It executes a " +
				"piece of Python-style code (Starlark dialect: no imports; the math and json modules " +
				"are predeclared) and returns the final result. Only non-plotting code may run here; " +
				"plotting must go through fig_inter. Variables persist between calls in the same " +
				"session.",
			Example: `{"py_code": "arr = [1, 2, 3, 4]\nsum_arr = sum(arr)\nsum_arr"}`,
		},
		logger:   logger,
		maxSteps: defaultMaxSteps,
	}
}

// Parameters returns the parameters struct
func (t *PythonTool) Parameters() interface{} {
	return &PythonParams{}
}

// Execute runs the code against a fresh namespace.
func (t *PythonTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	return t.ExecuteInNamespace(ctx, params, NewNamespace())
}

// ExecuteInNamespace runs the code against the session namespace.
func (t *PythonTool) ExecuteInNamespace(ctx context.Context, params json.RawMessage, ns *Namespace) (string, error) {
	var args PythonParams
	if err := DecodeParams(params, &args); err != nil {
		return "", err
	}
	return t.run(ctx, args.PyCode, ns)
}

func (t *PythonTool) run(ctx context.Context, code string, ns *Namespace) (string, error) {
	env := namespaceEnv(ns)
	if len(env.skipped) > 0 {
		t.logger.Warn("namespace values hidden from script", zap.Strings("names", env.skipped))
	}

	// Tier 1: a single expression.
	if v, run, err := evalExpr(ctx, t.Name(), code, env.globals, t.maxSteps); err == nil {
		env.commit(ns, nil)
		return run.output(display(v)), nil
	}
	if err := ctx.Err(); err != nil {
		return "", NewToolError(CodeExecutionFailed, "Code execution cancelled").
			WithDetail("error", err.Error())
	}

	// Tier 2: statements; report newly bound variables. The environment is
	// rebuilt so a failed first tier leaves no partial changes behind.
	env = namespaceEnv(ns)
	globals, run, err := execScript(ctx, t.Name(), code, env.globals, t.maxSteps)
	if err != nil {
		return "", NewToolError(CodeExecutionFailed, "Error while executing code").
			WithDetail("error", scriptError(err))
	}

	existing := make(map[string]bool, ns.Len())
	for _, k := range ns.Keys() {
		existing[k] = true
	}
	env.commit(ns, globals)

	newVars := starlark.NewDict(len(globals))
	for _, name := range globals.Keys() {
		if !existing[name] {
			_ = newVars.SetKey(starlark.String(name), globals[name])
		}
	}
	if newVars.Len() > 0 {
		t.logger.Debug("code bound new variables", zap.Int("count", newVars.Len()))
		return run.output(newVars.String()), nil
	}

	// Tier 3: best-effort evaluation of the trailing expression against a
	// copy, so it cannot change the namespace a second time.
	if last := lastExpressionLine(code); last != "" {
		scratch := make(starlark.StringDict, len(env.globals)+len(globals))
		for name, val := range env.globals {
			scratch[name] = val
		}
		for name, val := range globals {
			scratch[name] = val
		}
		for name, val := range scratch {
			if copied, err := thaw(val); err == nil {
				scratch[name] = copied
			}
		}
		if v, _, err := evalExpr(ctx, t.Name(), last, scratch, t.maxSteps); err == nil && v != starlark.None {
			return run.output(display(v)), nil
		}
	}

	return run.output(executionSuccessText), nil
}

// scriptError flattens a Starlark error to one readable message.
func scriptError(err error) string {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return strings.TrimSpace(evalErr.Msg)
	}
	return err.Error()
}
