package formats

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/texforge/nbprep/internal/notebook"
	"github.com/texforge/nbprep/internal/validation"
)

// notebookHandler recognizes Jupyter notebooks.
type notebookHandler struct{}

func init() {
	Register(&notebookHandler{})
}

func (h *notebookHandler) Name() string {
	return FormatNotebook
}

// Detect implements Handler.Detect.
func (h *notebookHandler) Detect(path string) (*DetectResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return &DetectResult{
			Detected: false,
			Reason:   fmt.Sprintf("cannot stat: %v", err),
		}, nil
	}
	if info.IsDir() {
		return &DetectResult{
			Detected: false,
			Reason:   "path is a directory",
		}, nil
	}

	if strings.ToLower(filepath.Ext(path)) != ".ipynb" {
		return &DetectResult{
			Detected: false,
			Reason:   "not an .ipynb file",
		}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return &DetectResult{
			Detected: false,
			Reason:   fmt.Sprintf("cannot open file: %v", err),
		}, nil
	}
	defer f.Close()

	if _, err := validation.ValidateFileType(f, filepath.Base(path)); err != nil {
		return &DetectResult{
			Detected: false,
			Reason:   err.Error(),
		}, nil
	}

	if !notebook.Detect(path) {
		return &DetectResult{
			Detected: false,
			Reason:   "not a JSON object document",
		}, nil
	}

	return &DetectResult{
		Detected: true,
		Format:   FormatNotebook,
		Reason:   "Jupyter notebook detected",
	}, nil
}
