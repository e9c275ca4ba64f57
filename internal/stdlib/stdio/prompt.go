package stdio

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/quillrt/quill/internal/engine"
)

// Prompt kinds, matching original_source/src/lune/builtins/stdio/prompt.rs's
// PromptKind enum (text/confirm/select/multiselect).
const (
	promptKindText        = "text"
	promptKindConfirm     = "confirm"
	promptKindSelect      = "select"
	promptKindMultiSelect = "multiselect"
)

// promptFn implements stdio.prompt(options) -> result, where options has a
// "kind" field selecting one of the four prompt styles above, a "text"
// prompt string, an optional "default" (string for text, boolean for
// confirm), and an "options" array of choice labels for select/multiselect.
//
// The result shape mirrors original_source's PromptResult: a string for
// text, a boolean for confirm, a 1-based index (or nil if the line was
// empty, standing in for dialoguer's Esc-to-cancel) for select, and a
// table of 1-based indices (or nil) for multiselect.
//
// No library in the retrieval pack provides dialoguer-style interactive
// widgets (arrow-key selection, a spinner theme); this is a plain
// line-based implementation over the same stdinReader readLine uses,
// styled with lipgloss and gated by go-isatty exactly like stdio.format,
// documented in DESIGN.md's stdio ledger entry rather than silently
// passed off as the real thing.
func promptFn(f *engine.Frame, args []engine.Value) (engine.Value, error) {
	opts := engine.NewTable()
	if len(args) > 0 {
		t, ok := args[0].(*engine.Table)
		if !ok {
			return nil, engine.Errorf("prompt: expected an options table, got %s", engine.TypeName(args[0]))
		}
		opts = t
	}
	kind, _ := opts.Get("kind").(string)
	if kind == "" {
		kind = promptKindText
	}
	switch kind {
	case promptKindConfirm:
		return promptConfirm(opts)
	case promptKindSelect:
		return promptSelect(opts)
	case promptKindMultiSelect:
		return promptMultiSelect(opts)
	case promptKindText:
		return promptText(opts)
	default:
		return nil, engine.Errorf("prompt: unknown kind %q", kind)
	}
}

func promptLabel(opts *engine.Table) string {
	text, _ := opts.Get("text").(string)
	return promptStyle(text)
}

// promptStyle renders prompt text bold when stdout is a terminal, the
// same TTY-gated styling stdio.format applies.
func promptStyle(text string) string {
	if text == "" {
		return ""
	}
	if !isTerminalStdout() {
		return text
	}
	return namedStyles["bold"].Render(text)
}

func isTerminalStdout() bool {
	v, _ := isTTY(nil, nil)
	ok, _ := v.(bool)
	return ok
}

func readPromptLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(os.Stdout, prompt, " ")
	}
	v, err := readLine(nil, nil)
	if err != nil {
		return "", err
	}
	line, _ := v.(string)
	return line, nil
}

func promptText(opts *engine.Table) (engine.Value, error) {
	line, err := readPromptLine(promptLabel(opts))
	if err != nil {
		return nil, err
	}
	if line == "" {
		if def, ok := opts.Get("default").(string); ok {
			return def, nil
		}
	}
	return line, nil
}

func promptConfirm(opts *engine.Table) (engine.Value, error) {
	def, hasDefault := opts.Get("default").(bool)
	suffix := " (y/n)"
	if hasDefault {
		if def {
			suffix = " (Y/n)"
		} else {
			suffix = " (y/N)"
		}
	}
	line, err := readPromptLine(promptLabel(opts) + suffix)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		if hasDefault {
			return def, nil
		}
		return false, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func promptChoices(opts *engine.Table) []string {
	choicesTbl, ok := opts.Get("options").(*engine.Table)
	if !ok {
		return nil
	}
	choices := make([]string, 0, choicesTbl.Len())
	for _, v := range choicesTbl.Array() {
		choices = append(choices, engine.ToDisplayString(v))
	}
	return choices
}

func promptSelect(opts *engine.Table) (engine.Value, error) {
	choices := promptChoices(opts)
	var b strings.Builder
	b.WriteString(promptLabel(opts))
	b.WriteString("\n")
	for i, c := range choices {
		fmt.Fprintf(&b, "  %d) %s\n", i+1, c)
	}
	fmt.Fprint(os.Stdout, b.String())
	line, err := readPromptLine("")
	if err != nil {
		return nil, err
	}
	idx, convErr := strconv.Atoi(strings.TrimSpace(line))
	if convErr != nil || idx < 1 || idx > len(choices) {
		return nil, nil
	}
	return float64(idx), nil
}

func promptMultiSelect(opts *engine.Table) (engine.Value, error) {
	choices := promptChoices(opts)
	var b strings.Builder
	b.WriteString(promptLabel(opts))
	b.WriteString("\n")
	for i, c := range choices {
		fmt.Fprintf(&b, "  %d) %s\n", i+1, c)
	}
	fmt.Fprint(os.Stdout, b.String())
	line, err := readPromptLine("(comma-separated indices)")
	if err != nil {
		return nil, err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	result := engine.NewTable()
	for _, part := range strings.Split(line, ",") {
		idx, convErr := strconv.Atoi(strings.TrimSpace(part))
		if convErr != nil || idx < 1 || idx > len(choices) {
			continue
		}
		result.Append(float64(idx))
	}
	return result, nil
}
