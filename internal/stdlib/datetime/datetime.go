// Package datetime implements the @std/datetime module: monotonic and
// wall-clock time, locale-aware formatting, and parsing. Grounded on
// iolang/coreext/date/date.go and the root iolang/date.go (an object
// wrapping a time.Time with format/arithmetic slots), reworked from Io's
// slot-per-method surface into a handful of functions plus a table
// representing one instant, using gitlab.com/variadico/lctime for locale
// formatting exactly as the teacher's asString/asDateString use it.
package datetime

import (
	"time"

	"gitlab.com/variadico/lctime"

	"github.com/quillrt/quill/internal/engine"
)

// Loader returns the @std/datetime table.
func Loader(m *engine.Machine) ([]engine.Value, error) {
	t := engine.NewTable()
	t.Set("now", &engine.NativeFunc{Name: "datetime.now", Fn: func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
		return instantTable(time.Now()), nil
	}})
	// monotonic counts seconds since this table was built, read from Go's
	// monotonic clock so wall-clock adjustments do not affect it.
	start := time.Now()
	t.Set("monotonic", &engine.NativeFunc{Name: "datetime.monotonic", Fn: func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
		return time.Since(start).Seconds(), nil
	}})
	t.Set("format", &engine.NativeFunc{Name: "datetime.format", Fn: formatFn})
	t.Set("parse", &engine.NativeFunc{Name: "datetime.parse", Fn: parseFn})
	return []engine.Value{t}, nil
}

func instantTable(tm time.Time) *engine.Table {
	inst := engine.NewTable()
	inst.Set("unixSeconds", float64(tm.Unix()))
	inst.Set("year", float64(tm.Year()))
	inst.Set("month", float64(tm.Month()))
	inst.Set("day", float64(tm.Day()))
	inst.Set("hour", float64(tm.Hour()))
	inst.Set("minute", float64(tm.Minute()))
	inst.Set("second", float64(tm.Second()))
	inst.Set("weekday", float64(tm.Weekday()))
	return inst
}

func timeFromInstant(v engine.Value) (time.Time, bool) {
	t, ok := v.(*engine.Table)
	if !ok {
		return time.Time{}, false
	}
	secs, ok := t.Get("unixSeconds").(float64)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(secs), 0).UTC(), true
}

// format(instant, strftimeFormat) -> string, locale-aware via lctime
// (iolang/coreext/date/date.go: `lctime.Strftime(format, d)`).
func formatFn(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	if len(args) < 2 {
		return nil, engine.Errorf("format requires an instant and a format string")
	}
	tm, ok := timeFromInstant(args[0])
	if !ok {
		return nil, engine.Errorf("format: first argument must be a datetime instant")
	}
	layout, ok := args[1].(string)
	if !ok {
		return nil, engine.Errorf("format: second argument must be a string")
	}
	return lctime.Strftime(layout, tm), nil
}

// parse(text, layout) -> instant, using Go's reference-time layout syntax
// since spec.md scopes no particular format family in for parsing.
func parseFn(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	if len(args) < 2 {
		return nil, engine.Errorf("parse requires a string and a layout")
	}
	text, ok := args[0].(string)
	if !ok {
		return nil, engine.Errorf("parse: first argument must be a string")
	}
	layout, ok := args[1].(string)
	if !ok {
		return nil, engine.Errorf("parse: second argument must be a string")
	}
	tm, err := time.Parse(layout, text)
	if err != nil {
		return nil, engine.Errorf("parse: %v", err)
	}
	return instantTable(tm), nil
}
