package tools

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/xiaokk2024/mymanus1/internal/database"
)

const (
	scriptFilename       = "<py_code>"
	defaultMaxSteps      = 50_000_000
	executionSuccessText = "Code executed successfully"
)

// Python-like dialect: top-level loops and ifs, while, sets, recursion and
// rebinding of globals are all allowed.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

func builtinModules() starlark.StringDict {
	return starlark.StringDict{
		"math":  starlarkmath.Module,
		"json":  starlarkjson.Module,
		"sum":   starlark.NewBuiltin("sum", builtinSum),
		"round": starlark.NewBuiltin("round", builtinRound),
	}
}

// sum(iterable, start=0)
func builtinSum(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	var acc starlark.Value = starlark.MakeInt(0)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &iterable, "start?", &acc); err != nil {
		return nil, err
	}
	it := iterable.Iterate()
	defer it.Done()

	var elem starlark.Value
	for it.Next(&elem) {
		next, err := starlark.Binary(syntax.PLUS, acc, elem)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		acc = next
	}
	return acc, nil
}

// round(x, ndigits=0)
func builtinRound(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	var ndigits int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &x, "ndigits?", &ndigits); err != nil {
		return nil, err
	}
	f, ok := starlark.AsFloat(x)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want number", b.Name(), x.Type())
	}
	if ndigits == 0 {
		return starlark.MakeInt64(int64(math.Round(f))), nil
	}
	scale := math.Pow(10, float64(ndigits))
	return starlark.Float(math.Round(f*scale) / scale), nil
}

// scriptRun holds the thread and captured print output of one evaluation.
type scriptRun struct {
	thread *starlark.Thread
	out    bytes.Buffer
	stop   chan struct{}
}

func newScriptRun(ctx context.Context, name string, maxSteps uint64) *scriptRun {
	r := &scriptRun{stop: make(chan struct{})}
	r.thread = &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			r.out.WriteString(msg)
			r.out.WriteByte('\n')
		},
	}
	if maxSteps == 0 {
		maxSteps = defaultMaxSteps
	}
	r.thread.SetMaxExecutionSteps(maxSteps)

	go func() {
		select {
		case <-ctx.Done():
			r.thread.Cancel(ctx.Err().Error())
		case <-r.stop:
		}
	}()
	return r
}

func (r *scriptRun) done() {
	close(r.stop)
}

// output prefixes result with anything the script printed.
func (r *scriptRun) output(result string) string {
	printed := strings.TrimRight(r.out.String(), "\n")
	if printed == "" {
		return result
	}
	if result == "" {
		return printed
	}
	return printed + "\n" + result
}

func evalExpr(ctx context.Context, name, expr string, env starlark.StringDict, maxSteps uint64) (starlark.Value, *scriptRun, error) {
	run := newScriptRun(ctx, name, maxSteps)
	defer run.done()
	v, err := starlark.EvalOptions(fileOptions, run.thread, scriptFilename, expr, env)
	return v, run, err
}

func execScript(ctx context.Context, name, code string, env starlark.StringDict, maxSteps uint64) (starlark.StringDict, *scriptRun, error) {
	run := newScriptRun(ctx, name, maxSteps)
	defer run.done()
	globals, err := starlark.ExecFileOptions(fileOptions, run.thread, scriptFilename, code, env)
	return globals, run, err
}

// scriptEnv is the predeclared environment of one script run. bound lists
// the namespace names it exposes.
type scriptEnv struct {
	globals starlark.StringDict
	bound   []string
	skipped []string
}

// namespaceEnv builds the predeclared environment for a script: the builtin
// modules plus every namespace binding that converts to a Starlark value.
// Containers are copied unfrozen so scripts can change them in place.
func namespaceEnv(ns *Namespace) *scriptEnv {
	env := &scriptEnv{globals: builtinModules()}
	for name, v := range ns.Snapshot() {
		sv, err := toStarlark(v)
		if err != nil {
			env.skipped = append(env.skipped, name)
			continue
		}
		env.globals[name] = sv
		env.bound = append(env.bound, name)
	}
	sort.Strings(env.skipped)
	sort.Strings(env.bound)
	return env
}

// commit writes the containers a run may have changed in place back to the
// namespace, then the globals the run bound. Scalars are immutable and stay
// as stored.
func (e *scriptEnv) commit(ns *Namespace, globals starlark.StringDict) {
	for _, name := range e.bound {
		switch v := e.globals[name].(type) {
		case *starlark.List, *starlark.Dict, *starlark.Set, starlark.Tuple:
			ns.Set(name, v)
		}
	}
	for name, val := range globals {
		ns.Set(name, val)
	}
}

// thaw returns an unfrozen deep copy of the containers in v. Other values
// are returned as is.
func thaw(v starlark.Value) (starlark.Value, error) {
	switch x := v.(type) {
	case *starlark.List:
		elems := make([]starlark.Value, x.Len())
		for i := range elems {
			e, err := thaw(x.Index(i))
			if err != nil {
				return nil, err
			}
			elems[i] = e
		}
		return starlark.NewList(elems), nil
	case *starlark.Dict:
		d := starlark.NewDict(x.Len())
		for _, item := range x.Items() {
			k, err := thaw(item[0])
			if err != nil {
				return nil, err
			}
			val, err := thaw(item[1])
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(k, val); err != nil {
				return nil, err
			}
		}
		return d, nil
	case *starlark.Set:
		s := starlark.NewSet(x.Len())
		it := x.Iterate()
		defer it.Done()
		var elem starlark.Value
		for it.Next(&elem) {
			if err := s.Insert(elem); err != nil {
				return nil, err
			}
		}
		return s, nil
	case starlark.Tuple:
		elems := make(starlark.Tuple, len(x))
		for i, e := range x {
			te, err := thaw(e)
			if err != nil {
				return nil, err
			}
			elems[i] = te
		}
		return elems, nil
	default:
		return v, nil
	}
}

// display renders a value the way str() would: strings unquoted.
func display(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}

// lastExpressionLine returns the last non-empty, non-indented line of code.
func lastExpressionLine(code string) string {
	lines := strings.Split(strings.TrimSpace(code), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimRight(lines[i], " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			return ""
		}
		return line
	}
	return ""
}

func toStarlark(v interface{}) (starlark.Value, error) {
	switch x := v.(type) {
	case starlark.Value:
		return thaw(x)
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int8:
		return starlark.MakeInt64(int64(x)), nil
	case int16:
		return starlark.MakeInt64(int64(x)), nil
	case int32:
		return starlark.MakeInt64(int64(x)), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case uint:
		return starlark.MakeUint(x), nil
	case uint8:
		return starlark.MakeUint64(uint64(x)), nil
	case uint16:
		return starlark.MakeUint64(uint64(x)), nil
	case uint32:
		return starlark.MakeUint64(uint64(x)), nil
	case uint64:
		return starlark.MakeUint64(x), nil
	case float32:
		return starlark.Float(x), nil
	case float64:
		return starlark.Float(x), nil
	case string:
		return starlark.String(x), nil
	case []byte:
		return starlark.String(x), nil
	case time.Time:
		return starlark.String(x.Format(time.RFC3339)), nil
	case []string:
		elems := make([]starlark.Value, len(x))
		for i, s := range x {
			elems[i] = starlark.String(s)
		}
		return starlark.NewList(elems), nil
	case []interface{}:
		elems := make([]starlark.Value, len(x))
		for i, e := range x {
			sv, err := toStarlark(e)
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := starlark.NewDict(len(x))
		for _, k := range keys {
			sv, err := toStarlark(x[k])
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	case *database.Table:
		return tableToStarlark(x)
	case fmt.Stringer:
		return starlark.String(x.String()), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to a script value", v)
	}
}

// tableToStarlark exposes a table as a dict of column name to column values.
func tableToStarlark(t *database.Table) (starlark.Value, error) {
	d := starlark.NewDict(len(t.Columns))
	for _, col := range t.Columns {
		values, _ := t.Column(col)
		sv, err := toStarlark(values)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		if err := d.SetKey(starlark.String(col), sv); err != nil {
			return nil, err
		}
	}
	return d, nil
}
