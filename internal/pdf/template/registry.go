package template

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/a3tai/dealerlite/internal/documents"
)

// DefaultDirPerm is used when the template directory has to be created
const DefaultDirPerm = 0o750

// fileNames maps each document kind to its template file
var fileNames = map[documents.Kind]string{
	documents.KindWaiver:     "test_drive_waiver_template.pdf",
	documents.KindBillOfSale: "bill_of_sale_template.pdf",
}

// Registry locates the template file for each document kind inside one
// directory. It only ever reads templates after Ensure has run.
type Registry struct {
	dir string
}

// NewRegistry creates a registry rooted at dir
func NewRegistry(dir string) (*Registry, error) {
	if dir == "" {
		return nil, fmt.Errorf("template directory cannot be empty")
	}
	return &Registry{dir: dir}, nil
}

// Dir returns the template directory
func (r *Registry) Dir() string {
	return r.dir
}

// Path returns the template path for kind
func (r *Registry) Path(kind documents.Kind) (string, error) {
	name, ok := fileNames[kind]
	if !ok {
		return "", fmt.Errorf("no template registered for document kind %q", kind)
	}
	return filepath.Join(r.dir, name), nil
}

// Ensure writes the stock template for every kind whose file is missing and
// returns the paths it created. Existing templates are left alone so that a
// dealership can drop in its own forms.
func (r *Registry) Ensure() ([]string, error) {
	if err := os.MkdirAll(r.dir, DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("cannot create template directory %s: %w", r.dir, err)
	}

	var created []string
	for _, kind := range documents.Kinds {
		path, err := r.Path(kind)
		if err != nil {
			return created, err
		}
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return created, fmt.Errorf("cannot access template %s: %w", path, err)
		}

		layout, err := LayoutFor(kind)
		if err != nil {
			return created, err
		}
		data, err := Build(layout)
		if err != nil {
			return created, fmt.Errorf("failed to build %s template: %w", kind, err)
		}
		if err := os.WriteFile(path, data, 0o640); err != nil {
			return created, fmt.Errorf("failed to write template %s: %w", path, err)
		}
		created = append(created, path)
	}
	return created, nil
}

// Load reads the template bytes for kind
func (r *Registry) Load(kind documents.Kind) ([]byte, error) {
	path, err := r.Path(kind)
	if err != nil {
		return nil, err
	}
	if err := validateTemplateFile(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return data, nil
}

// Verify inspects the template for kind and reports which schema fields it
// has no widget for.
func (r *Registry) Verify(kind documents.Kind) (*Inspection, []string, error) {
	data, err := r.Load(kind)
	if err != nil {
		return nil, nil, err
	}
	insp, err := Inspect(data)
	if err != nil {
		return nil, nil, err
	}
	return insp, insp.Missing(kind.Schema()), nil
}
