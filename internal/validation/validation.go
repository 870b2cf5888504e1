// Package validation verifies that input files match the format their
// name claims before the decode paths run. Detection is content first:
// magic bytes identify binary formats, and a printability heuristic
// separates text documents from binaries that merely carry a textual
// extension.
package validation

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// FileType is a detected or claimed input format.
type FileType string

const (
	// Document formats.
	FileTypeNotebook FileType = "notebook"
	FileTypeLaTeX    FileType = "latex"
	FileTypeMarkdown FileType = "markdown"

	// Data formats.
	FileTypeJSON FileType = "json"
	FileTypeYAML FileType = "yaml"
	FileTypeText FileType = "text"

	// Binary formats nbprep produces or reads back.
	FileTypeSQLite FileType = "sqlite"
	FileTypeXZ     FileType = "xz"
	FileTypeGzip   FileType = "gzip"

	FileTypeUnknown FileType = "unknown"
)

// magicBytes holds signatures for the binary formats we can mistake a
// document for: compressed backups and the ledger database.
var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypeGzip, []byte{0x1f, 0x8b}},
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{FileTypeSQLite, []byte("SQLite format 3")},
}

// ValidateFileType checks a file's content against the type its filename
// extension claims. Binary signatures win outright; textual extensions
// are accepted when the content looks like text, since notebooks, LaTeX,
// and YAML cannot be told apart by magic bytes. A binary signature under
// a document extension is an error.
func ValidateFileType(reader io.Reader, filename string) (FileType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	buf = buf[:n]

	detected := detectFileTypeFromMagic(buf)
	expected := detectFileTypeFromExtension(filename)

	if detected == expected {
		return detected, nil
	}

	if detected == FileTypeUnknown && isTextualType(expected) {
		if isLikelyText(buf) {
			return expected, nil
		}
	}

	if detected != FileTypeUnknown && expected != FileTypeUnknown {
		return FileTypeUnknown, fmt.Errorf("file type mismatch: extension suggests %s but content is %s", expected, detected)
	}

	// No signature matched; trust the extension.
	if detected == FileTypeUnknown {
		return expected, nil
	}

	return detected, nil
}

func isTextualType(t FileType) bool {
	switch t {
	case FileTypeNotebook, FileTypeLaTeX, FileTypeMarkdown, FileTypeJSON, FileTypeYAML, FileTypeText:
		return true
	}
	return false
}

func detectFileTypeFromMagic(buf []byte) FileType {
	for _, sig := range magicBytes {
		if len(sig.magic) <= len(buf) && bytes.Equal(buf[:len(sig.magic)], sig.magic) {
			return sig.fileType
		}
	}
	return FileTypeUnknown
}

func detectFileTypeFromExtension(filename string) FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".ipynb":
		return FileTypeNotebook
	case ".tex", ".latex", ".sty", ".cls":
		return FileTypeLaTeX
	case ".md", ".markdown":
		return FileTypeMarkdown
	case ".json":
		return FileTypeJSON
	case ".yaml", ".yml":
		return FileTypeYAML
	case ".txt":
		return FileTypeText
	case ".sqlite", ".db", ".sqlite3":
		return FileTypeSQLite
	case ".xz":
		return FileTypeXZ
	case ".gz":
		return FileTypeGzip
	default:
		return FileTypeUnknown
	}
}

// isLikelyText reports whether the buffer reads as text. Null bytes mean
// binary immediately; otherwise at least 95% of the bytes must be
// printable ASCII or whitespace. UTF-8 multibyte sequences count as
// neither, so multilingual prose still clears the threshold.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}

	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}

	printable := 0
	control := 0
	for _, b := range buf {
		if b >= 0x20 && b <= 0x7e || b == '\t' || b == '\n' || b == '\r' {
			printable++
		} else if b < 0x20 {
			control++
		}
	}

	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
