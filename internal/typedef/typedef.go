// Package typedef generates ".d.quill" type-stub files for each @std
// module, for editor tooling. Grounded on
// original_source/src/cli/gen.rs's scheme (one stub file per builtin,
// written to a per-version cache directory under the user's home),
// adapted to Quill's own module set and a fixed hand-written template
// per builtin rather than reading bundled Luau typedef source files,
// since Quill's std modules are Go functions with no separate typedef
// source to embed.
package typedef

import (
	"fmt"
	"os"
	"path/filepath"
)

// Stub is a generated type-definition file for one @std module.
type Stub struct {
	Name     string
	Contents string
}

// stubs describes the exported shape of each @std module this runtime
// ships, matching the function names each Loader actually registers.
var stubs = []Stub{
	{Name: "task", Contents: stubTemplate("task", []string{
		"function spawn(fn: (...any) -> (...any), ...: any): thread",
		"function defer(fn: (...any) -> (...any), ...: any): thread",
		"function delay(seconds: number, fn: (...any) -> (...any), ...: any): thread",
		"function cancel(t: thread): ()",
		"function wait(seconds: number?): number",
	})},
	{Name: "serde", Contents: stubTemplate("serde", []string{
		"function encode(format: string, value: any): string",
		"function decode(format: string, text: string): any",
		"function compress(codec: string, text: string): string",
		"function decompress(codec: string, text: string): string",
		"function hash(algo: string, text: string): string",
		"function hmac(algo: string, key: string, text: string): string",
	})},
	{Name: "datetime", Contents: stubTemplate("datetime", []string{
		"function now(): {[string]: number}",
		"function monotonic(): number",
		"function format(instant: {[string]: number}, layout: string): string",
		"function parse(text: string, layout: string): {[string]: number}",
	})},
	{Name: "fs", Contents: stubTemplate("fs", []string{
		"function readFile(path: string): string",
		"function writeFile(path: string, contents: string): ()",
		"function appendFile(path: string, contents: string): ()",
		"function removeFile(path: string): ()",
		"function removeDir(path: string, recursive: boolean?): ()",
		"function createDir(path: string): ()",
		"function listDir(path: string): {string}",
		"function exists(path: string): boolean",
		"function isFile(path: string): boolean",
		"function isDir(path: string): boolean",
		"function metadata(path: string): {size: number, modified: number, isDir: boolean, isFile: boolean}",
		"function move(from: string, to: string): ()",
		"function copy(from: string, to: string): ()",
	})},
	{Name: "net", Contents: stubTemplate("net", []string{
		"function request(options: {method: string?, url: string, body: string?, headers: {[string]: string}?}): {status: number, body: string, headers: {[string]: string}}",
		"function wsConnect(url: string): number",
		"function wsSend(socket: number, message: string): ()",
		"function wsReceive(socket: number): string",
		"function wsClose(socket: number): ()",
		"function serve(options: {port: number, handler: (request: {method: string, path: string, query: string, body: string, headers: {[string]: string}}) -> ({status: number?, body: string?, headers: {[string]: string}?} | string)}): {stop: () -> ()}",
	})},
	{Name: "process", Contents: stubTemplate("process", []string{
		"args: {string}",
		"function pid(): number",
		"function cwd(): string",
		"function exit(code: number?): ()",
		"function getEnv(name: string): string?",
		"function setEnv(name: string, value: string): ()",
		"function exec(program: string, ...: string): {ok: boolean, code: number, stdout: string, stderr: string}",
		"function create(program: string, ...: string): number",
		"function write(handle: number, data: string): ()",
		"function readOut(handle: number): string?",
		"function readErr(handle: number): string?",
		"function wait(handle: number): {ok: boolean, code: number}",
	})},
	{Name: "stdio", Contents: stubTemplate("stdio", []string{
		"function write(...: any): ()",
		"function ewrite(...: any): ()",
		"function readLine(): string?",
		"function read(byteCount: number?): string?",
		"function readToEnd(): string",
		"function prompt(options: {kind: string?, text: string?, default: any?, options: {string}?}): any",
		"function format(text: string, style: string): string",
		"function isTTY(): boolean",
		"function inspect(value: any): string",
	})},
	{Name: "luau", Contents: stubTemplate("luau", []string{
		"function load(source: string, chunkName: string?): (...any) -> (...any)",
	})},
	{Name: "regex", Contents: stubTemplate("regex", []string{
		"function match(pattern: string, text: string): boolean",
		"function find(pattern: string, text: string): string?",
		"function findAll(pattern: string, text: string): {string}",
		"function replace(pattern: string, text: string, replacement: string): string",
		"function split(pattern: string, text: string): {string}",
	})},
}

func stubTemplate(name string, members []string) string {
	s := fmt.Sprintf("-- generated typedef stub for @std/%s\ndeclare %s: {\n", name, name)
	for _, m := range members {
		s += "\t" + m + ",\n"
	}
	s += "}\n"
	return s
}

// CacheDir returns the directory typedef stubs for the given runtime
// version should be written to: $HOME/.quill/.typedefs/<version>,
// mirroring original_source's ~/.lune/.typedefs/<version> layout.
func CacheDir(version string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".quill", ".typedefs", version), nil
}

// Generate writes every stub to CacheDir(version), creating it if
// necessary, and returns the version string written (mirroring the
// original's return value, used by the CLI to report where it wrote).
func Generate(version string) (string, error) {
	dir, err := CacheDir(version)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return "", err
	}
	for _, s := range stubs {
		path := filepath.Join(dir, s.Name+".d.quill")
		if err := os.WriteFile(path, []byte(s.Contents), 0666); err != nil {
			return "", err
		}
	}
	return version, nil
}
