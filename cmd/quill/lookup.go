package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/quillrt/quill/internal/require"
)

// resolveScript implements spec.md §6's run lookup order for a bare
// script name (no path separators, no extension): current directory,
// then ./quill/<name>, then ./.quill/<name>, then $HOME/.quill/<name>,
// trying each of require.Extensions in turn at every location. A
// target containing a path separator or an extension is treated as an
// explicit path and returned as an absolute path if it exists.
func resolveScript(target string) (string, error) {
	if strings.ContainsAny(target, `/\`) || filepath.Ext(target) != "" {
		if _, err := os.Stat(target); err != nil {
			return "", err
		}
		return filepath.Abs(target)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	home, _ := os.UserHomeDir()

	var dirs []string
	dirs = append(dirs, cwd)
	dirs = append(dirs, filepath.Join(cwd, "quill"))
	dirs = append(dirs, filepath.Join(cwd, ".quill"))
	if home != "" {
		dirs = append(dirs, filepath.Join(home, ".quill"))
	}

	for _, dir := range dirs {
		for _, ext := range require.Extensions {
			candidate := filepath.Join(dir, target+ext)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}
	return "", &os.PathError{Op: "resolveScript", Path: target, Err: os.ErrNotExist}
}

// wellKnownScriptDirs returns the directories the list subcommand
// scans, in the same order resolveScript checks them (minus the bare
// current directory, which list does not walk since it is not a
// scripts-only location).
func wellKnownScriptDirs() []string {
	cwd, _ := os.Getwd()
	home, _ := os.UserHomeDir()
	var dirs []string
	if cwd != "" {
		dirs = append(dirs, filepath.Join(cwd, "quill"), filepath.Join(cwd, ".quill"))
	}
	if home != "" {
		dirs = append(dirs, filepath.Join(home, ".quill"))
	}
	return dirs
}
