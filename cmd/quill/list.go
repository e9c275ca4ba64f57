package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillrt/quill/internal/require"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Enumerate scripts in well-known directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := listScripts()
			if err != nil {
				return err
			}
			if len(found) == 0 {
				return fmt.Errorf("no scripts found")
			}
			sort.Slice(found, func(i, j int) bool { return found[i].name < found[j].name })
			for _, s := range found {
				if s.description != "" {
					fmt.Printf("%s - %s\n", s.name, s.description)
				} else {
					fmt.Println(s.name)
				}
			}
			return nil
		},
	}
}

type scriptEntry struct {
	name        string
	description string
}

// listScripts scans the same well-known directories resolveScript
// checks, reading each script's top-of-file "--" comment as its
// description, matching original_source's list subcommand.
func listScripts() ([]scriptEntry, error) {
	var out []scriptEntry
	for _, dir := range wellKnownScriptDirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			matched := false
			for _, ext := range require.Extensions {
				if strings.HasSuffix(name, ext) {
					matched = true
					name = strings.TrimSuffix(name, ext)
					break
				}
			}
			if !matched {
				continue
			}
			desc, _ := readTopComment(filepath.Join(dir, e.Name()))
			out = append(out, scriptEntry{name: name, description: desc})
		}
	}
	return out, nil
}

// readTopComment returns the first "--" line at the top of a script,
// stripped of the comment marker, as its description.
func readTopComment(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return "", nil
	}
	line := strings.TrimSpace(scanner.Text())
	if !strings.HasPrefix(line, "--") {
		return "", nil
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "--")), nil
}
