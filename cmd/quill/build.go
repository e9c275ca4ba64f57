package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillrt/quill/internal/standalone"
)

func newBuildCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "build <target>",
		Short: "Bundle a script into a single standalone executable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]
			path, err := resolveScript(target)
			if err != nil {
				return err
			}
			source, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			out := output
			if out == "" {
				out = defaultBuildOutput(target)
			}
			self, err := os.Executable()
			if err != nil {
				return err
			}
			if err := standalone.Build(self, out, string(source)); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "output path for the bundled executable")
	cmd.Flags().String("target", "", "target platform triple (accepted, not yet cross-compiled)")
	return cmd
}

func defaultBuildOutput(target string) string {
	base := target
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' || base[i] == '\\' {
			base = base[i+1:]
			break
		}
	}
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			base = base[:i]
			break
		}
	}
	return base
}

func checkStandaloneSelf() (string, bool, error) {
	return standalone.CheckSelf()
}
