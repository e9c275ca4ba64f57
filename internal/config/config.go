// Package config decodes quill.toml's project-level settings (the
// fields beyond require's alias table, which internal/require decodes
// on its own since it only needs the aliases). Grounded on the
// BurntSushi/toml decode pattern already established by require.go and
// stdlib/serde's TOML codec.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Project is the decoded shape of a quill.toml project file.
type Project struct {
	Name    string            `toml:"name"`
	Version string            `toml:"version"`
	Aliases map[string]string `toml:"aliases"`
	Std     StdConfig         `toml:"std"`
}

// StdConfig controls which @std modules are available to a project, so
// a sandboxed script cannot reach process/fs/net unless explicitly
// enabled.
type StdConfig struct {
	Enabled []string `toml:"enabled"`
}

// Load decodes the quill.toml at path. A missing file is not an error;
// it returns the zero Project so callers can proceed with defaults.
func Load(path string) (Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Project{}, nil
		}
		return Project{}, err
	}
	var p Project
	if _, err := toml.Decode(string(data), &p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// StdEnabled reports whether name is permitted by the project's std
// allowlist. An empty allowlist means everything is enabled, matching
// the teacher's own "absence of restriction" default elsewhere.
func (p Project) StdEnabled(name string) bool {
	if len(p.Std.Enabled) == 0 {
		return true
	}
	for _, n := range p.Std.Enabled {
		if n == name {
			return true
		}
	}
	return false
}
