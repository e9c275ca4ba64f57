// Package require implements the module resolution and execution
// subsystem of spec.md §4.6: canonical path resolution (relative / @alias
// / @std / init-file / extension search), a Pending→Resolved cache with
// broadcast to concurrent waiters, and cycle detection via a process-wide
// "currently loading" path stack. Grounded on the teacher's addon-loading
// cache (iolang/addon.go, since removed from the workspace after being
// generalized here: "load once, remember by name, error if already
// loading") and on original_source/src/lune/importer for the exact
// resolution order and the case-insensitive alias-name detail.
package require

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/quillrt/quill/internal/engine"
)

// Kind names the resolution/execution error kinds of spec.md §4.6/§7.
type Kind int

const (
	KindNotFound Kind = iota
	KindAmbiguousMatch
	KindAliasNotFound
	KindCycleDetected
)

// Error is a require-subsystem failure, raised into the requiring
// coroutine as a Script error (spec.md §7).
type Error struct {
	Kind Kind
	Path string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("module not found: %q", e.Path)
	case KindAmbiguousMatch:
		return fmt.Sprintf("ambiguous module match: %q", e.Path)
	case KindAliasNotFound:
		return fmt.Sprintf("alias not found: %q", e.Path)
	case KindCycleDetected:
		return fmt.Sprintf("cyclic require detected: %q", e.Path)
	default:
		return fmt.Sprintf("require error: %q", e.Path)
	}
}

// Extensions tried, in order, when a surface form omits one.
var Extensions = []string{".luau", ".lua"}

// InitName is the file a directory-valued require path is rewritten to.
const InitName = "init"

// ConfigNames are the alias-configuration file names looked for while
// walking up from the requiring script's directory, checked in order.
var ConfigNames = []string{"quill.toml", ".quillrc"}

// Loader is a host-registered builtin namespace loader for @std/<name>.
type Loader func(m *engine.Machine) ([]engine.Value, error)

// entryState is a RequireEntry's lifecycle (spec.md §4.2's table): Pending
// while a build is in flight, Resolved once the module body has run.
type entryState int

const (
	statePending entryState = iota
	stateResolved
)

type cacheEntry struct {
	state  entryState
	values []engine.Value
	err    error
	ready  chan struct{} // closed when state transitions to Resolved
}

// Cache implements the require cache and cycle detector for one Machine.
// A single Cache is shared by every coroutine created against that
// Machine, since modules are singletons across the whole running script.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	loaders map[string]Loader

	// loading is the stack of canonical paths whose module body is
	// currently being built somewhere in the active require chain
	// (spec.md §4.6/§8's S5: module A requires B, B requires A). It is
	// process-wide rather than keyed per coroutine: build's
	// moduleCo.Resume call blocks its own caller until that module
	// finishes (or yields, the documented early-return limitation on
	// build), so at any instant at most one build is ever actually in
	// progress regardless of how many distinct *engine.Coroutine values
	// stand between the outermost require and the innermost one that
	// closes the cycle — a per-coroutine stack would miss exactly that
	// case, since A's module body and B's module body run as two
	// different coroutines even though neither can make progress while
	// the other is blocked waiting on it. This needs push/pop-on-
	// completion semantics, unlike the monotonic visited-set
	// iolang/object.go's IsKindOf builds with contains.Set.Add — a
	// finished require must stop counting as "currently loading" so a
	// later sibling require of the same already-resolved module isn't
	// misreported as cyclic. contains.Set has no observed removal API in
	// the corpus, so this stack is a plain slice searched linearly, which
	// is more than fast enough at realistic require-chain depths.
	loadingMu sync.Mutex
	loading   []string
}

// NewCache creates an empty require cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		loaders: make(map[string]Loader),
	}
}

// RegisterStd installs a built-in @std/name loader, pre-populated with a
// Resolved entry so lookups never yield (spec.md §4.6).
func (c *Cache) RegisterStd(name string, load Loader) {
	values, err := load(nil)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaders["@std/"+name] = load
	c.entries["@std/"+name] = &cacheEntry{state: stateResolved, values: values, err: err}
}

// AliasConfig is the decoded shape of quill.toml/.quillrc's alias table.
type AliasConfig struct {
	Aliases map[string]string `toml:"aliases"`
}

// Resolve turns a require surface form into a canonical filesystem path
// (or a "@std/name" pseudo-path for builtins), following spec.md §4.6's
// precedence: relative → @alias via nearest config → @std → init-file
// rewrite → extension search.
func Resolve(fromDir, spec string) (string, error) {
	switch {
	case strings.HasPrefix(spec, "@std/"):
		return spec, nil
	case strings.HasPrefix(spec, "@"):
		return resolveAlias(fromDir, spec)
	default:
		return resolvePath(filepath.Join(fromDir, spec))
	}
}

func resolveAlias(fromDir, spec string) (string, error) {
	rest := spec[1:]
	slash := strings.IndexByte(rest, '/')
	aliasName, sub := rest, ""
	if slash >= 0 {
		aliasName, sub = rest[:slash], rest[slash+1:]
	}
	dir, target, err := findAlias(fromDir, aliasName)
	if err != nil {
		return "", err
	}
	_ = dir
	return resolvePath(filepath.Join(target, sub))
}

// findAlias walks up from fromDir looking for a config file defining
// aliasName (case-insensitive), returning the directory the alias maps to.
func findAlias(fromDir, aliasName string) (configDir, targetDir string, err error) {
	dir := fromDir
	lower := strings.ToLower(aliasName)
	for {
		for _, name := range ConfigNames {
			cfgPath := filepath.Join(dir, name)
			if data, statErr := os.ReadFile(cfgPath); statErr == nil {
				var cfg AliasConfig
				if _, decErr := toml.Decode(string(data), &cfg); decErr == nil {
					for k, v := range cfg.Aliases {
						if strings.ToLower(k) == lower {
							target := v
							if !filepath.IsAbs(target) {
								target = filepath.Join(dir, target)
							}
							return dir, target, nil
						}
					}
				}
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", "", &Error{Kind: KindAliasNotFound, Path: aliasName}
}

// resolvePath applies the init-file rewrite and extension search to a
// filesystem path with no @-prefix, and canonicalizes the result.
func resolvePath(p string) (string, error) {
	if info, err := os.Stat(p); err == nil {
		if info.IsDir() {
			return resolveWithExtensions(filepath.Join(p, InitName))
		}
		return filepath.Abs(p)
	}
	return resolveWithExtensions(p)
}

func resolveWithExtensions(base string) (string, error) {
	if filepath.Ext(base) != "" {
		if _, err := os.Stat(base); err == nil {
			return filepath.Abs(base)
		}
		return "", &Error{Kind: KindNotFound, Path: base}
	}
	var found string
	for _, ext := range Extensions {
		candidate := base + ext
		if _, err := os.Stat(candidate); err == nil {
			if found != "" {
				return "", &Error{Kind: KindAmbiguousMatch, Path: base}
			}
			found = candidate
		}
	}
	if found == "" {
		return "", &Error{Kind: KindNotFound, Path: base}
	}
	return filepath.Abs(found)
}

// Compiler produces a fresh coroutine that will execute a module's source
// when resumed. The require subsystem does not know how to parse or run
// script source itself; it is handed a factory so callers can supply
// engine.NewMainCoroutine (or a mock, in tests).
type Compiler func(m *engine.Machine, canonicalPath string) (*engine.Coroutine, error)

// Require resolves spec relative to fromDir and returns the module's
// value list, compiling and running it on a fresh coroutine on first
// access. co is the requiring coroutine; it is passed to the loading-stack
// helpers, but cycle detection itself is process-wide (see Cache.loading).
func (c *Cache) Require(m *engine.Machine, co *engine.Coroutine, fromDir, spec string, compile Compiler) ([]engine.Value, error) {
	if strings.HasPrefix(spec, "@std/") {
		return c.requireStd(spec)
	}
	path, err := Resolve(fromDir, spec)
	if err != nil {
		return nil, err
	}
	return c.requirePath(m, co, path, compile)
}

func (c *Cache) requireStd(spec string) ([]engine.Value, error) {
	c.mu.Lock()
	load, ok := c.loaders[spec]
	entry := c.entries[spec]
	c.mu.Unlock()
	if entry != nil {
		return entry.values, entry.err
	}
	if !ok {
		return nil, &Error{Kind: KindNotFound, Path: spec}
	}
	values, err := load(nil)
	c.mu.Lock()
	c.entries[spec] = &cacheEntry{state: stateResolved, values: values, err: err}
	c.mu.Unlock()
	return values, err
}

func (c *Cache) requirePath(m *engine.Machine, co *engine.Coroutine, path string, compile Compiler) ([]engine.Value, error) {
	if !c.enterLoading(co, path) {
		return nil, &Error{Kind: KindCycleDetected, Path: path}
	}
	defer c.leaveLoading(co, path)

	c.mu.Lock()
	entry, ok := c.entries[path]
	if !ok {
		entry = &cacheEntry{state: statePending, ready: make(chan struct{})}
		c.entries[path] = entry
		c.mu.Unlock()
		return c.build(m, path, entry, compile)
	}
	c.mu.Unlock()

	if entry.state == stateResolved {
		return entry.values, entry.err
	}

	// Pending: another coroutine is building this module. In a single-VM-
	// thread engine there is no other coroutine actually running
	// concurrently right now, but a module body itself may call require
	// reentrantly on a different coroutine spawned by the scheduler; block
	// until that build's broadcast fires.
	<-entry.ready
	return entry.values, entry.err
}

// build runs moduleCo to completion and resolves entry with its result.
// It assumes a module body resumes to completion in a single Resume call
// (spec.md's S2 scenario and every module in this corpus): a module whose
// top level itself performs a host async call (rather than doing so inside
// a function invoked later) would yield moduleCo mid-build, and this
// Resume call would return early with the yield's placeholder values
// instead of the module's real return — a documented limitation, not
// silently handled, since correctly joining on such a yield would require
// the requiring coroutine to suspend too (so the scheduler's main loop can
// keep driving moduleCo's pending work), which only the requiring
// coroutine's own call site can safely arrange.
func (c *Cache) build(m *engine.Machine, path string, entry *cacheEntry, compile Compiler) ([]engine.Value, error) {
	moduleCo, err := compile(m, path)
	if err != nil {
		c.resolve(entry, nil, err)
		return nil, err
	}
	values, _, runErr := moduleCo.Resume(nil)
	c.resolve(entry, values, runErr)
	return values, runErr
}

func (c *Cache) resolve(entry *cacheEntry, values []engine.Value, err error) {
	c.mu.Lock()
	entry.state = stateResolved
	entry.values = values
	entry.err = err
	c.mu.Unlock()
	close(entry.ready)
}

// enterLoading pushes path onto the shared loading stack, unless it is
// already present (a cycle). co is accepted for call-site symmetry with
// leaveLoading and for a future per-coroutine diagnostic, but membership
// is checked process-wide, not per co — see the Cache.loading field doc.
func (c *Cache) enterLoading(co *engine.Coroutine, path string) bool {
	c.loadingMu.Lock()
	defer c.loadingMu.Unlock()
	for _, p := range c.loading {
		if p == path {
			return false
		}
	}
	c.loading = append(c.loading, path)
	return true
}

func (c *Cache) leaveLoading(co *engine.Coroutine, path string) {
	c.loadingMu.Lock()
	defer c.loadingMu.Unlock()
	if n := len(c.loading); n > 0 && c.loading[n-1] == path {
		c.loading = c.loading[:n-1]
	}
}
