package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/quillrt/quill/internal/config"
	"github.com/quillrt/quill/internal/engine"
)

const (
	replWelcome   = "Quill v" + version
	replInterrupt = "Interrupt: ^C again to exit"
)

// runRepl drives an interactive read-eval-print loop, grounded on
// original_source's repl.rs: a regular/continuation prompt pair, a
// history file under the user's home directory, and "incomplete
// input" detection that accumulates lines instead of reporting a
// syntax error until the parser accepts the buffered source (or gives
// up on a genuine error). There is no readline-style line editor
// anywhere in the retrieval pack, so this uses a plain bufio.Scanner
// over stdin, the same as the teacher's own cmd/io/main.go REPL.
func runRepl() error {
	fmt.Println(replWelcome)

	env := newEnvironment(config.Project{}, nil)
	env.Scheduler.SetErrorCallback(func(err error) {
		fmt.Fprintln(os.Stderr, err)
	})

	historyPath := historyFilePath()
	history, _ := os.OpenFile(historyPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if history != nil {
		defer history.Close()
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, syscall.SIGINT)
	var interruptCount int32
	go func() {
		for range interrupts {
			if atomic.AddInt32(&interruptCount, 1) == 1 {
				fmt.Println()
				fmt.Println(replInterrupt)
				continue
			}
			os.Exit(0)
		}
	}()

	stdin := bufio.NewScanner(os.Stdin)
	var buffer strings.Builder
	continuation := false

	for {
		atomic.StoreInt32(&interruptCount, 0)
		if continuation {
			fmt.Print(">> ")
		} else {
			fmt.Print("> ")
		}
		if !stdin.Scan() {
			break
		}
		line := stdin.Text()
		if history != nil {
			fmt.Fprintln(history, line)
		}
		if continuation {
			buffer.WriteByte('\n')
		}
		buffer.WriteString(line)

		source := buffer.String()
		if _, err := engine.Parse(source); err != nil {
			if looksIncomplete(err) {
				continuation = true
				continue
			}
			fmt.Fprintln(os.Stderr, err)
			buffer.Reset()
			continuation = false
			continue
		}

		buffer.Reset()
		continuation = false

		code, runErr := env.Run(source, "REPL", nil)
		if runErr != nil {
			fmt.Fprintln(os.Stderr, runErr)
		} else if code != 0 {
			fmt.Fprintf(os.Stderr, "exit code %d\n", code)
		}
	}
	return stdin.Err()
}

// looksIncomplete reports whether a parse error most likely means the
// input ends mid-statement (an unclosed block, an expression missing
// its right-hand side) rather than a genuine syntax mistake: Parse
// renders a token's text as "" (`unexpected token ""`, or an
// `expected ..., got ""` from an unmet keyword such as a missing "end")
// exactly when the lexer hit end-of-input while a block or expression
// was still open.
func looksIncomplete(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, `unexpected token ""`) || strings.HasSuffix(msg, `got ""`)
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quill_history"
	}
	return filepath.Join(home, ".quill_history")
}
