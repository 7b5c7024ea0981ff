package template

import (
	"fmt"
	"os"
	"strings"

	pdferrors "github.com/a3tai/dealerlite/internal/pdf/errors"
)

// MaxTemplateSize bounds the template files the registry will load
const MaxTemplateSize = 16 * 1024 * 1024

// validateTemplateFile checks that path names a non-empty PDF file of
// reasonable size before it is read.
func validateTemplateFile(path string) error {
	invalid := func(format string, args ...any) error {
		return pdferrors.New(pdferrors.ErrorTypeInvalidTemplate, fmt.Sprintf(format, args...)).WithFile(path)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return invalid("template does not exist")
	}
	if err != nil {
		return pdferrors.Wrap(pdferrors.ErrorTypeInvalidTemplate, "cannot access template", err).WithFile(path)
	}

	if info.IsDir() {
		return invalid("template path is a directory")
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return invalid("template is not a PDF file")
	}
	if info.Size() == 0 {
		return invalid("template is empty")
	}
	if info.Size() > MaxTemplateSize {
		return invalid("template too large: %d bytes (max: %d bytes)", info.Size(), MaxTemplateSize)
	}
	return nil
}
