package engine

import (
	"fmt"
	"math"
)

// Control-flow signals threaded through exec* via the error channel. They
// never escape to script-visible code; execBlock and the loop/function
// dispatchers intercept them. Grounded on the sentinel-error style
// iolang/coreext control-flow addons (control.go, since removed here) used
// for Io's own return/continue objects, generalized to real Go error
// values instead of Io Object sentinels.
type breakSignal struct{}
type continueSignal struct{}
type returnSignal struct{ values []Value }

func (breakSignal) Error() string    { return "break outside loop" }
func (continueSignal) Error() string { return "continue outside loop" }
func (returnSignal) Error() string   { return "return outside function" }

// execFuncBody runs a closure or coroutine body, converting a returnSignal
// into a plain return-values result and letting any other error (including
// a *ScriptError) propagate to the caller.
func execFuncBody(f *Frame, env *Env, body []Stmt) ([]Value, error) {
	err := execBlock(f, env, body)
	if err == nil {
		return nil, nil
	}
	if rs, ok := err.(returnSignal); ok {
		return rs.values, nil
	}
	return nil, err
}

func execBlock(f *Frame, env *Env, stmts []Stmt) error {
	for _, stmt := range stmts {
		if err := execStmt(f, env, stmt); err != nil {
			return err
		}
	}
	return nil
}

func execStmt(f *Frame, env *Env, stmt Stmt) error {
	switch s := stmt.(type) {
	case *LocalStmt:
		vals, err := evalExprList(f, env, s.Exprs)
		if err != nil {
			return err
		}
		for i, name := range s.Names {
			var v Value
			if i < len(vals) {
				v = vals[i]
			}
			env.Define(name, v)
		}
		return nil

	case *AssignStmt:
		vals, err := evalExprList(f, env, s.Exprs)
		if err != nil {
			return err
		}
		for i, target := range s.Targets {
			var v Value
			if i < len(vals) {
				v = vals[i]
			}
			if err := assign(f, env, target, v); err != nil {
				return err
			}
		}
		return nil

	case *CallStmt:
		_, err := evalMulti(f, env, s.Call)
		return err

	case *IfStmt:
		cond, err := evalExpr(f, env, s.Cond)
		if err != nil {
			return err
		}
		if Truthy(cond) {
			return execBlock(f, NewEnv(env), s.Then)
		}
		for i, c := range s.ElseIfConds {
			cv, err := evalExpr(f, env, c)
			if err != nil {
				return err
			}
			if Truthy(cv) {
				return execBlock(f, NewEnv(env), s.ElseIfBodies[i])
			}
		}
		if s.Else != nil {
			return execBlock(f, NewEnv(env), s.Else)
		}
		return nil

	case *WhileStmt:
		for {
			cond, err := evalExpr(f, env, s.Cond)
			if err != nil {
				return err
			}
			if !Truthy(cond) {
				return nil
			}
			err = execBlock(f, NewEnv(env), s.Body)
			if err == nil {
				continue
			}
			if _, ok := err.(breakSignal); ok {
				return nil
			}
			if _, ok := err.(continueSignal); ok {
				continue
			}
			return err
		}

	case *NumForStmt:
		return execNumFor(f, env, s)

	case *GenForStmt:
		return execGenFor(f, env, s)

	case *ReturnStmt:
		vals, err := evalExprList(f, env, s.Exprs)
		if err != nil {
			return err
		}
		return returnSignal{values: vals}

	case *BreakStmt:
		return breakSignal{}

	case *ContinueStmt:
		return continueSignal{}

	case *DoStmt:
		return execBlock(f, NewEnv(env), s.Body)

	default:
		return fmt.Errorf("quill: unhandled statement %T", stmt)
	}
}

func execNumFor(f *Frame, env *Env, s *NumForStmt) error {
	start, err := evalNumber(f, env, s.Start)
	if err != nil {
		return err
	}
	stop, err := evalNumber(f, env, s.Stop)
	if err != nil {
		return err
	}
	step := 1.0
	if s.Step != nil {
		step, err = evalNumber(f, env, s.Step)
		if err != nil {
			return err
		}
	}
	if step == 0 {
		return Errorf("'for' step is zero")
	}
	for i := start; (step > 0 && i <= stop) || (step < 0 && i >= stop); i += step {
		loopEnv := NewEnv(env)
		loopEnv.Define(s.Var, i)
		err := execBlock(f, loopEnv, s.Body)
		if err == nil {
			continue
		}
		if _, ok := err.(breakSignal); ok {
			return nil
		}
		if _, ok := err.(continueSignal); ok {
			continue
		}
		return err
	}
	return nil
}

// execGenFor implements the generic for-in loop by treating Exprs as
// (iterator function, state, initial control variable), Lua's protocol,
// which fits Quill's require/pairs-style iteration needs without inventing
// a bespoke iterator interface.
func execGenFor(f *Frame, env *Env, s *GenForStmt) error {
	ctrl, err := evalExprList(f, env, s.Exprs)
	if err != nil {
		return err
	}
	var iterFn, state, control Value
	if len(ctrl) > 0 {
		iterFn = ctrl[0]
	}
	if len(ctrl) > 1 {
		state = ctrl[1]
	}
	if len(ctrl) > 2 {
		control = ctrl[2]
	}
	for {
		results, err := call(f, iterFn, []Value{state, control})
		if err != nil {
			return err
		}
		if len(results) == 0 || results[0] == nil {
			return nil
		}
		control = results[0]
		loopEnv := NewEnv(env)
		for i, name := range s.Vars {
			var v Value
			if i < len(results) {
				v = results[i]
			}
			loopEnv.Define(name, v)
		}
		err = execBlock(f, loopEnv, s.Body)
		if err == nil {
			continue
		}
		if _, ok := err.(breakSignal); ok {
			return nil
		}
		if _, ok := err.(continueSignal); ok {
			continue
		}
		return err
	}
}

func evalNumber(f *Frame, env *Env, e Expr) (float64, error) {
	v, err := evalExpr(f, env, e)
	if err != nil {
		return 0, err
	}
	n, ok := v.(float64)
	if !ok {
		return 0, Errorf("'for' expression must be a number, got %s", TypeName(v))
	}
	return n, nil
}

func assign(f *Frame, env *Env, target Expr, v Value) error {
	switch t := target.(type) {
	case *NameExpr:
		if env.Set(t.Name, v) {
			return nil
		}
		f.Machine.Globals.Set(t.Name, v)
		return nil
	case *IndexExpr:
		obj, err := evalExpr(f, env, t.Target)
		if err != nil {
			return err
		}
		key, err := evalExpr(f, env, t.Key)
		if err != nil {
			return err
		}
		tbl, ok := obj.(*Table)
		if !ok {
			return Errorf("attempt to index a %s value", TypeName(obj))
		}
		tbl.Set(key, v)
		return nil
	default:
		return fmt.Errorf("quill: invalid assignment target %T", target)
	}
}

// evalExprList evaluates a comma-separated expression list, expanding the
// final expression to all of its results if it is a call or vararg
// reference (Lua's "last expression in a list adjusts to multiple values"
// rule, spec.md's "resume/return payloads carry a value list").
func evalExprList(f *Frame, env *Env, exprs []Expr) ([]Value, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	vals := make([]Value, 0, len(exprs))
	for i, e := range exprs {
		if i == len(exprs)-1 {
			multi, err := evalMulti(f, env, e)
			if err != nil {
				return nil, err
			}
			vals = append(vals, multi...)
		} else {
			v, err := evalExpr(f, env, e)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
	}
	return vals, nil
}

// evalMulti evaluates an expression in a context where it may produce more
// than one value (calls, varargs); every other expression kind yields
// exactly one.
func evalMulti(f *Frame, env *Env, e Expr) ([]Value, error) {
	switch x := e.(type) {
	case *CallExpr:
		return evalCall(f, env, x)
	case VarargExpr:
		v, _ := env.Get("...")
		if list, ok := v.([]Value); ok {
			return list, nil
		}
		return nil, nil
	default:
		v, err := evalExpr(f, env, e)
		if err != nil {
			return nil, err
		}
		return []Value{v}, nil
	}
}

func first(vals []Value) Value {
	if len(vals) == 0 {
		return nil
	}
	return vals[0]
}

func evalExpr(f *Frame, env *Env, e Expr) (Value, error) {
	switch x := e.(type) {
	case NilExpr:
		return nil, nil
	case TrueExpr:
		return true, nil
	case FalseExpr:
		return false, nil
	case VarargExpr:
		vals, err := evalMulti(f, env, x)
		return first(vals), err
	case *NumberExpr:
		return x.Value, nil
	case *StringExpr:
		return x.Value, nil
	case *NameExpr:
		if v, ok := env.Get(x.Name); ok {
			return v, nil
		}
		return f.Machine.Globals.Get(x.Name), nil
	case *IndexExpr:
		obj, err := evalExpr(f, env, x.Target)
		if err != nil {
			return nil, err
		}
		key, err := evalExpr(f, env, x.Key)
		if err != nil {
			return nil, err
		}
		switch o := obj.(type) {
		case *Table:
			return o.Get(key), nil
		case string:
			return nil, Errorf("attempt to index a string value (strings have no fields; use the string stdlib)")
		default:
			return nil, Errorf("attempt to index a %s value", TypeName(obj))
		}
	case *CallExpr:
		vals, err := evalCall(f, env, x)
		return first(vals), err
	case *FuncExpr:
		dir := ""
		if f.Coro != nil && f.Coro.Closure != nil {
			dir = f.Coro.Closure.Dir
		}
		return &Closure{Name: x.Name, Params: x.Params, Vararg: x.Vararg, Body: x.Body, Env: env, Machine: f.Machine, Dir: dir}, nil
	case *TableExpr:
		return evalTable(f, env, x)
	case *BinExpr:
		return evalBin(f, env, x)
	case *UnExpr:
		return evalUn(f, env, x)
	default:
		return nil, fmt.Errorf("quill: unhandled expression %T", e)
	}
}

func evalTable(f *Frame, env *Env, x *TableExpr) (Value, error) {
	t := NewTable()
	for i, item := range x.Items {
		if i == len(x.Items)-1 {
			vals, err := evalMulti(f, env, item)
			if err != nil {
				return nil, err
			}
			for _, v := range vals {
				t.Append(v)
			}
		} else {
			v, err := evalExpr(f, env, item)
			if err != nil {
				return nil, err
			}
			t.Append(v)
		}
	}
	for i, keyExpr := range x.Keys {
		key, err := evalExpr(f, env, keyExpr)
		if err != nil {
			return nil, err
		}
		val, err := evalExpr(f, env, x.Values[i])
		if err != nil {
			return nil, err
		}
		t.Set(key, val)
	}
	return t, nil
}

func evalCall(f *Frame, env *Env, x *CallExpr) ([]Value, error) {
	callee, err := evalExpr(f, env, x.Callee)
	if err != nil {
		return nil, err
	}
	args, err := evalExprList(f, env, x.Args)
	if err != nil {
		return nil, err
	}
	if x.Method != "" {
		tbl, ok := callee.(*Table)
		if !ok {
			return nil, Errorf("attempt to call method %q on a %s value", x.Method, TypeName(callee))
		}
		method := tbl.Get(x.Method)
		args = append([]Value{callee}, args...)
		return call(f, method, args)
	}
	return call(f, callee, args)
}

// CallValue invokes fn (a *Closure or *NativeFunc) with args under f,
// exactly as a script-level call would. Exported so stdlib packages that
// hold a script callback (an HTTP request handler, an event listener) can
// invoke it without reimplementing call dispatch.
func CallValue(f *Frame, fn Value, args []Value) ([]Value, error) {
	return call(f, fn, args)
}

// call dispatches to a closure or native function. It is the single choke
// point native functions and the evaluator both go through, so the async
// bridge and stdlib functions can call back into script closures (e.g. a
// callback argument) with the same semantics as a script-level call.
func call(f *Frame, fn Value, args []Value) ([]Value, error) {
	switch fv := fn.(type) {
	case *Closure:
		env := NewEnv(fv.Env)
		bindParams(env, fv.Params, fv.Vararg, args)
		return execFuncBody(f, env, fv.Body)
	case *NativeFunc:
		v, err := fv.Fn(f, args)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		if mv, ok := v.(Multi); ok {
			return []Value(mv), nil
		}
		return []Value{v}, nil
	case nil:
		return nil, Errorf("attempt to call a nil value")
	default:
		return nil, Errorf("attempt to call a %s value", TypeName(fn))
	}
}

func bindParams(env *Env, params []string, vararg bool, args []Value) {
	for i, name := range params {
		var v Value
		if i < len(args) {
			v = args[i]
		}
		env.Define(name, v)
	}
	if vararg {
		var extra []Value
		if len(args) > len(params) {
			extra = append(extra, args[len(params):]...)
		}
		env.Define("...", extra)
	}
}

func evalBin(f *Frame, env *Env, x *BinExpr) (Value, error) {
	if x.Op == "and" {
		l, err := evalExpr(f, env, x.Left)
		if err != nil {
			return nil, err
		}
		if !Truthy(l) {
			return l, nil
		}
		return evalExpr(f, env, x.Right)
	}
	if x.Op == "or" {
		l, err := evalExpr(f, env, x.Left)
		if err != nil {
			return nil, err
		}
		if Truthy(l) {
			return l, nil
		}
		return evalExpr(f, env, x.Right)
	}
	l, err := evalExpr(f, env, x.Left)
	if err != nil {
		return nil, err
	}
	r, err := evalExpr(f, env, x.Right)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case "..":
		return ToDisplayString(l) + ToDisplayString(r), nil
	case "==":
		return valuesEqual(l, r), nil
	case "~=":
		return !valuesEqual(l, r), nil
	}
	if ls, lok := l.(string); lok {
		if rs, rok := r.(string); rok {
			switch x.Op {
			case "<":
				return ls < rs, nil
			case "<=":
				return ls <= rs, nil
			case ">":
				return ls > rs, nil
			case ">=":
				return ls >= rs, nil
			}
		}
	}
	ln, lok := l.(float64)
	rn, rok := r.(float64)
	if !lok || !rok {
		return nil, Errorf("attempt to perform arithmetic on a %s value", TypeName(l))
	}
	switch x.Op {
	case "+":
		return ln + rn, nil
	case "-":
		return ln - rn, nil
	case "*":
		return ln * rn, nil
	case "/":
		return ln / rn, nil
	case "%":
		return math.Mod(ln, rn), nil
	case "^":
		return math.Pow(ln, rn), nil
	case "<":
		return ln < rn, nil
	case "<=":
		return ln <= rn, nil
	case ">":
		return ln > rn, nil
	case ">=":
		return ln >= rn, nil
	default:
		return nil, fmt.Errorf("quill: unhandled binary operator %q", x.Op)
	}
}

func valuesEqual(l, r Value) bool {
	if l == nil || r == nil {
		return l == r
	}
	return l == r
}

func evalUn(f *Frame, env *Env, x *UnExpr) (Value, error) {
	v, err := evalExpr(f, env, x.Operand)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case "-":
		n, ok := v.(float64)
		if !ok {
			return nil, Errorf("attempt to perform arithmetic on a %s value", TypeName(v))
		}
		return -n, nil
	case "not":
		return !Truthy(v), nil
	case "#":
		switch t := v.(type) {
		case string:
			return float64(len(t)), nil
		case *Table:
			return float64(t.Len()), nil
		default:
			return nil, Errorf("attempt to get length of a %s value", TypeName(v))
		}
	default:
		return nil, fmt.Errorf("quill: unhandled unary operator %q", x.Op)
	}
}
