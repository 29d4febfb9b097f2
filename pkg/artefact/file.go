package artefact

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic streams an artefact through fn into a temporary file next
// to path and renames it over the target, so readers never observe a torn
// file. Parent directories are created as needed.
func WriteFileAtomic(path string, fn func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artefact directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary artefact: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	if err := fn(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// RestampMinor rewrites the envelope of an existing artefact at newMinor,
// leaving the payload bytes untouched. It is a no-op when the file is
// already at newMinor or newer, and refuses unknown majors like any other
// reader.
func RestampMinor(path string, newMinor uint16) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading artefact %s: %w", path, err)
	}

	r := bytes.NewReader(raw)
	env, err := ReadEnvelope(r)
	if err != nil {
		return fmt.Errorf("inspecting artefact %s: %w", path, err)
	}
	if env.Minor >= newMinor {
		return nil
	}

	payload := raw[len(raw)-r.Len():]
	env.Minor = newMinor
	return WriteFileAtomic(path, func(w io.Writer) error {
		if err := env.Write(w); err != nil {
			return err
		}
		_, err := w.Write(payload)
		return err
	})
}
