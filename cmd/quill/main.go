// Command quill is the CLI surface of spec.md §6, built the way the
// teacher's cmd/io/main.go drives a VM from a thin main package: this
// file only wires cobra subcommands to the internal/bootstrap
// environment, keeping the runtime semantics in the internal packages.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is the CARGO_PKG_VERSION analogue named throughout
// original_source's CLI: the string shown in the REPL banner and used
// as the typedef cache directory name.
const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:           "quill",
		Short:         "Quill is a standalone scripting runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCommand(),
		newListCommand(),
		newSetupCommand(),
		newBuildCommand(),
	)
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if source, ok, err := checkStandaloneSelf(); err != nil {
			return err
		} else if ok {
			code, err := runSource(source, "standalone", args)
			if err != nil {
				return err
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		}
		return runRepl()
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
