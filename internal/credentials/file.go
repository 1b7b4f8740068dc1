package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gofrs/flock"
)

const credentialsFile = "credentials.json"

// FileScope stores the fields in a JSON file readable only by the current user.
//
// Every read-modify-write holds an exclusive file lock so separate processes do not
// interleave writes.
type FileScope struct {
	dir string
}

// NewFileScope creates a file-backed scope rooted at dir.
func NewFileScope(dir string) *FileScope {
	return &FileScope{dir: dir}
}

func (s *FileScope) Name() string { return "file:" + s.path() }

func (s *FileScope) path() string {
	return filepath.Join(s.dir, credentialsFile)
}

func (s *FileScope) lockPath() string {
	return filepath.Join(s.dir, ".credentials.lock")
}

// Available reports whether the directory can be created.
func (s *FileScope) Available() error {
	return os.MkdirAll(s.dir, 0700)
}

func (s *FileScope) Read(f Field) (string, bool, error) {
	var value string
	var ok bool
	err := s.locked(func() error {
		all, err := s.load()
		if err != nil {
			return err
		}
		value, ok = all[f.Key()]
		return nil
	})
	return value, ok, err
}

func (s *FileScope) Write(f Field, value string) error {
	return s.update(func(all map[string]string) {
		all[f.Key()] = value
	})
}

func (s *FileScope) Delete(f Field) error {
	return s.update(func(all map[string]string) {
		delete(all, f.Key())
	})
}

func (s *FileScope) DeleteAll() error {
	return s.locked(func() error {
		if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove credentials file: %w", err)
		}
		return nil
	})
}

func (s *FileScope) update(mutate func(map[string]string)) error {
	return s.locked(func() error {
		all, err := s.load()
		if err != nil {
			return err
		}
		mutate(all)
		return s.save(all)
	})
}

func (s *FileScope) locked(fn func() error) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	fl := flock.New(s.lockPath())
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("failed to lock credentials file: %w", err)
	}
	defer fl.Unlock()

	return fn()
}

func (s *FileScope) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	all := make(map[string]string)
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("invalid credentials file: %w", err)
	}
	return all, nil
}

// save writes through a temp file and renames it over the destination.
func (s *FileScope) save(all map[string]string) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "credentials-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	dest := s.path()
	if err := os.Rename(tmpPath, dest); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(dest)
			return os.Rename(tmpPath, dest)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}
