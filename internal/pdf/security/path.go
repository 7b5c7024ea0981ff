// Package security keeps generated documents inside the output directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator confines file access to one configured directory
type PathValidator struct {
	configuredDirectory string
}

// NewPathValidator creates a new path validator for the given directory. The
// directory does not have to exist yet.
func NewPathValidator(configuredDirectory string) (*PathValidator, error) {
	if configuredDirectory == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	abs, err := filepath.Abs(configuredDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	return &PathValidator{configuredDirectory: filepath.Clean(abs)}, nil
}

// GetConfiguredDirectory returns the absolute configured directory
func (v *PathValidator) GetConfiguredDirectory() string {
	return v.configuredDirectory
}

// ValidateElement rejects a single path element that could leave its parent
// directory, such as a request id or file name taken from a URL.
func ValidateElement(elem string) error {
	switch {
	case elem == "":
		return fmt.Errorf("path element cannot be empty")
	case elem == "." || elem == "..":
		return fmt.Errorf("path element %q is not allowed", elem)
	case strings.ContainsAny(elem, `/\`+"\x00"):
		return fmt.Errorf("path element %q contains a separator", elem)
	}
	return nil
}

// Join validates each element and joins them under the configured directory
func (v *PathValidator) Join(elems ...string) (string, error) {
	if len(elems) == 0 {
		return "", fmt.Errorf("no path elements given")
	}
	for _, elem := range elems {
		if err := ValidateElement(elem); err != nil {
			return "", err
		}
	}
	path := filepath.Join(append([]string{v.configuredDirectory}, elems...)...)
	if err := v.ValidatePath(path); err != nil {
		return "", err
	}
	return path, nil
}

// ValidatePath checks that path stays inside the configured directory, also
// after resolving symlinks of whatever part of it already exists.
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	isWithin, err := v.IsPathWithinDirectory(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	if !isWithin {
		return fmt.Errorf("path is outside configured directory: %s", path)
	}
	return nil
}

// IsPathWithinDirectory reports whether path is the configured directory or
// lies below it
func (v *PathValidator) IsPathWithinDirectory(path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)
	if !within(cleanPath, v.configuredDirectory) {
		return false, nil
	}

	// Without an existing directory there are no symlinks to follow
	realDir, err := filepath.EvalSymlinks(v.configuredDirectory)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	realPath, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	return within(realPath, realDir), nil
}

// within reports whether path equals dir or is below it. Both must be clean.
func within(path, dir string) bool {
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}
