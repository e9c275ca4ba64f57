package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillrt/quill/internal/typedef"
)

func newSetupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Emit type-definition files for editor tooling",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := typedef.CacheDir(version)
			if err != nil {
				return err
			}
			if _, err := typedef.Generate(version); err != nil {
				return err
			}
			fmt.Printf("wrote typedefs for v%s to %s\n", version, dir)
			return nil
		},
	}
}
