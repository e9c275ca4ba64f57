package main

import (
	"os"
	"path/filepath"

	"github.com/quillrt/quill/internal/bootstrap"
	"github.com/quillrt/quill/internal/config"
)

// legacyCWDRequireEnv is the "one to force legacy CWD-relative require
// semantics (off by default)" variable named in spec.md §6.
const legacyCWDRequireEnv = "QUILL_LEGACY_CWD_REQUIRE"

// loadNearestProject walks up from the directory containing scriptPath
// looking for a quill.toml, mirroring internal/require's own alias
// config search so a project's std allowlist and a project's aliases
// are read from the same file.
func loadNearestProject(scriptPath string) (config.Project, error) {
	dir := filepath.Dir(scriptPath)
	for {
		p := filepath.Join(dir, "quill.toml")
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return config.Project{}, nil
}

func newEnvironment(proj config.Project, scriptArgs []string) *bootstrap.Environment {
	return bootstrap.New(proj, scriptArgs)
}

// legacyRequireBase returns the directory require paths should resolve
// against when QUILL_LEGACY_CWD_REQUIRE is set: the process's current
// working directory instead of the entry script's own directory.
func legacyRequireBase(scriptPath string) string {
	if os.Getenv(legacyCWDRequireEnv) != "" {
		if cwd, err := os.Getwd(); err == nil {
			return cwd
		}
	}
	return filepath.Dir(scriptPath)
}
