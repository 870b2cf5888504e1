package formats

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/texforge/nbprep/internal/validation"
)

// latexExtensions are the source extensions the patcher accepts.
var latexExtensions = map[string]bool{
	".tex":   true,
	".latex": true,
	".sty":   true,
	".cls":   true,
}

// latexHandler recognizes LaTeX source files.
type latexHandler struct{}

func init() {
	Register(&latexHandler{})
}

func (h *latexHandler) Name() string {
	return FormatLaTeX
}

// Detect implements Handler.Detect.
func (h *latexHandler) Detect(path string) (*DetectResult, error) {
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

	if !latexExtensions[strings.ToLower(filepath.Ext(path))] {
		return &DetectResult{
			Detected: false,
			Reason:   "not a LaTeX source extension",
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

	fileType, err := validation.ValidateFileType(f, filepath.Base(path))
	if err != nil {
		return &DetectResult{
			Detected: false,
			Reason:   err.Error(),
		}, nil
	}
	if fileType != validation.FileTypeLaTeX {
		return &DetectResult{
			Detected: false,
			Reason:   fmt.Sprintf("content is %s, not LaTeX", fileType),
		}, nil
	}

	return &DetectResult{
		Detected: true,
		Format:   FormatLaTeX,
		Reason:   "LaTeX source detected",
	}, nil
}
