package primitives

import (
	"os"
	"path/filepath"
)

// Filepath is a type-safe wrapper around file paths used for data files and
// the log file. It exists so path manipulation reads as a method call
// instead of scattering filepath.Join/Stat calls across the storage layer.
type Filepath string

// String implements fmt.Stringer.
func (f Filepath) String() string { return string(f) }

// Join concatenates path elements and returns a new Filepath.
func (f Filepath) Join(elem ...string) Filepath {
	parts := append([]string{string(f)}, elem...)
	return Filepath(filepath.Join(parts...))
}

// Dir returns the directory portion of the path.
func (f Filepath) Dir() string {
	return filepath.Dir(string(f))
}

// Exists reports whether the file exists on disk.
func (f Filepath) Exists() bool {
	_, err := os.Stat(string(f))
	return err == nil
}

// MkdirAll creates the parent directory and any missing ancestors.
func (f Filepath) MkdirAll(perm os.FileMode) error {
	return os.MkdirAll(f.Dir(), perm)
}

// IsEmpty reports whether the path is the empty string.
func (f Filepath) IsEmpty() bool {
	return string(f) == ""
}
