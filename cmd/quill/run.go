package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/quillrt/quill/internal/engine"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <target> [args...]",
		Short: "Resolve and run a script, exposing the rest as process.args",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, scriptArgs := args[0], args[1:]
			path, err := resolveScript(target)
			if err != nil {
				return err
			}
			source, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			code, err := runSource(string(source), path, scriptArgs)
			if err != nil {
				return err
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
}

// runSource loads the nearest quill.toml, builds a bootstrap
// Environment scoped to it, and runs source to completion.
func runSource(source, chunkName string, scriptArgs []string) (int, error) {
	proj, err := loadNearestProject(chunkName)
	if err != nil {
		return 1, err
	}
	env := newEnvironment(proj, scriptArgs)
	values := make([]engine.Value, len(scriptArgs))
	for i, a := range scriptArgs {
		values[i] = a
	}
	return env.RunFrom(source, chunkName, legacyRequireBase(chunkName), values)
}
