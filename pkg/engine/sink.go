package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samwightt/gqlblind/pkg/schema"
)

// Sink persists schema snapshots.
type Sink interface {
	Save(s *schema.Schema) error
}

// FileSink writes introspection JSON to Path. Each save replaces the file
// atomically, so a killed run leaves the last complete snapshot.
type FileSink struct {
	Path string
}

// Save implements Sink.
func (f FileSink) Save(s *schema.Schema) error {
	data, err := s.MarshalIntrospection()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), "."+filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.Path, err)
	}
	return nil
}
