// Package standalone implements the executable-bundling scheme used by
// "quill build": a script's source is appended to a copy of the quill
// binary itself, followed by an 8-byte big-endian length and an 8-byte
// magic footer, so the resulting binary can find its embedded payload
// at startup. The wire format (length-then-magic trailer, source found
// by walking backward from EOF) is ported directly from
// original_source/src/standalone/metadata.rs, since spec.md's
// distillation is silent on the bundling format and the original's
// scheme is the one thing a "build" subcommand actually needs to agree
// with itself on.
package standalone

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// magic is appended to the end of every standalone binary this package
// produces, matching original_source's MAGIC constant byte-for-byte
// in length (distinct value, since Quill is not Lune).
var magic = [8]byte{'q', 'u', 'i', 'l', 'l', 's', 't', '1'}

// ErrNotStandalone is returned by Read when the given bytes do not end
// with the standalone trailer.
var ErrNotStandalone = errors.New("standalone: not a standalone binary")

// Build appends source, its length, and the magic trailer to a copy of
// the binary at exePath, writing the result to outPath.
func Build(exePath, outPath, source string) error {
	base, err := os.ReadFile(exePath)
	if err != nil {
		return err
	}
	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0777)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := out.Write(base); err != nil {
		return err
	}
	if _, err := out.WriteString(source); err != nil {
		return err
	}
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(source)))
	if _, err := out.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := out.Write(magic[:]); err != nil {
		return err
	}
	return nil
}

// CheckSelf reads the currently running executable and, if it carries a
// standalone trailer, returns its embedded source and true.
func CheckSelf() (source string, ok bool, err error) {
	exe, err := os.Executable()
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(exe)
	if err != nil {
		return "", false, err
	}
	source, err = Read(data)
	if err != nil {
		if errors.Is(err, ErrNotStandalone) {
			return "", false, nil
		}
		return "", false, err
	}
	return source, true, nil
}

// Read extracts the embedded source from a standalone binary's bytes.
func Read(data []byte) (string, error) {
	const trailer = 16 // 8-byte length + 8-byte magic
	if len(data) < trailer {
		return "", ErrNotStandalone
	}
	if string(data[len(data)-8:]) != string(magic[:]) {
		return "", ErrNotStandalone
	}
	lengthBytes := data[len(data)-trailer : len(data)-8]
	length := binary.BigEndian.Uint64(lengthBytes)
	if uint64(len(data)) < trailer+length {
		return "", ErrNotStandalone
	}
	start := len(data) - trailer - int(length)
	return string(data[start : start+int(length)]), nil
}

// ReadFrom is a streaming convenience wrapper around Read for callers
// that already have an io.Reader rather than a byte slice.
func ReadFrom(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return Read(data)
}
