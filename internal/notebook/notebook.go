// Package notebook loads, rewrites, and saves Jupyter notebooks.
//
// Only markdown cell sources are ever modified. Everything else in the
// document (metadata, outputs, attachments, execution counts) rides through
// json.RawMessage untouched, and each cell source keeps its original
// string-or-list spelling, so a notebook that needs no fixes round-trips
// without gratuitous diffs.
package notebook

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/texforge/nbprep/core/errors"
	"github.com/texforge/nbprep/core/sanitize"
	"github.com/texforge/nbprep/internal/fileutil"
)

// Cell types defined by nbformat.
const (
	CellMarkdown = "markdown"
	CellCode     = "code"
	CellRaw      = "raw"
)

// SourceText is a notebook cell source. nbformat allows either a flat
// string or a list of string fragments; SourceText remembers which shape it
// was decoded from and re-emits the same shape. An untouched source keeps
// its original fragmentation byte for byte.
type SourceText struct {
	text  string
	list  bool
	frags []string
}

// Text returns the source as one flat string.
func (st *SourceText) Text() string {
	return st.text
}

// IsList reports whether the source was spelled as a fragment list.
func (st *SourceText) IsList() bool {
	return st.list
}

// SetText replaces the source text, reporting whether it changed. A list
// source is re-split into line fragments only on change; an identical text
// leaves the original fragments alone.
func (st *SourceText) SetText(text string) bool {
	if text == st.text {
		return false
	}
	st.text = text
	if st.list {
		st.frags = sanitize.SplitFragments(text)
		if st.frags == nil {
			st.frags = []string{}
		}
	}
	return true
}

// UnmarshalJSON decodes either nbformat source shape.
func (st *SourceText) UnmarshalJSON(data []byte) error {
	switch firstToken(data) {
	case '[':
		var frags []string
		if err := sonic.Unmarshal(data, &frags); err != nil {
			return err
		}
		st.list = true
		st.frags = frags
		st.text = strings.Join(frags, "")
	case 'n': // null source, treat as empty scalar
		st.list = false
		st.frags = nil
		st.text = ""
	default:
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return err
		}
		st.list = false
		st.frags = nil
		st.text = s
	}
	return nil
}

// MarshalJSON re-emits the shape the source was decoded with.
func (st SourceText) MarshalJSON() ([]byte, error) {
	if !st.list {
		return sonic.Marshal(st.text)
	}
	frags := st.frags
	if frags == nil {
		frags = []string{}
	}
	return sonic.Marshal(frags)
}

// firstToken returns the first non-whitespace byte of a JSON value.
func firstToken(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return b
		}
	}
	return 0
}

// Cell is one notebook cell. Field order follows the key order nbformat's
// own writer produces.
type Cell struct {
	Attachments    json.RawMessage `json:"attachments,omitempty"`
	CellType       string          `json:"cell_type"`
	ExecutionCount json.RawMessage `json:"execution_count,omitempty"`
	ID             string          `json:"id,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	Outputs        json.RawMessage `json:"outputs,omitempty"`
	Source         SourceText      `json:"source"`
}

// Notebook is an nbformat document.
type Notebook struct {
	Cells         []Cell          `json:"cells"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	NBFormat      int             `json:"nbformat"`
	NBFormatMinor int             `json:"nbformat_minor"`
}

// Load reads and decodes a notebook. Decode failures are malformed-input
// errors carrying the document path.
func Load(path string) (*Notebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	return Parse(data, path)
}

// Parse decodes notebook bytes. The path only labels errors.
func Parse(data []byte, path string) (*Notebook, error) {
	var nb Notebook
	if err := sonic.Unmarshal(data, &nb); err != nil {
		return nil, &errors.ParseError{
			Path:    path,
			Cell:    -1,
			Message: "invalid notebook JSON: " + err.Error(),
			Err:     err,
		}
	}
	if nb.NBFormat == 0 && len(nb.Cells) == 0 && nb.Metadata == nil {
		return nil, errors.NewParse(path, "not a Jupyter notebook")
	}
	for i := range nb.Cells {
		if nb.Cells[i].CellType == "" {
			return nil, errors.NewParseCell(path, i, "cell has no cell_type")
		}
	}
	if nb.Cells == nil {
		nb.Cells = []Cell{}
	}
	return &nb, nil
}

// Encode renders the notebook as indent=1 JSON, the layout Jupyter's own
// tooling writes.
func (nb *Notebook) Encode() ([]byte, error) {
	return sonic.MarshalIndent(nb, "", " ")
}

// Save encodes the notebook and writes it atomically, so a failed write
// never leaves a partial document behind.
func (nb *Notebook) Save(path string) error {
	data, err := nb.Encode()
	if err != nil {
		return errors.NewIO("encode", path, err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0644); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

// SanitizeMarkdown rewrites every markdown cell source through the
// sanitizer and reports whether anything changed. Code and raw cells are
// never touched.
func (nb *Notebook) SanitizeMarkdown(s *sanitize.Sanitizer) bool {
	changed := false
	for i := range nb.Cells {
		cell := &nb.Cells[i]
		if cell.CellType != CellMarkdown {
			continue
		}
		if cell.Source.SetText(s.Text(cell.Source.Text())) {
			changed = true
		}
	}
	return changed
}

// MarkdownCellCount returns the number of markdown cells.
func (nb *Notebook) MarkdownCellCount() int {
	n := 0
	for i := range nb.Cells {
		if nb.Cells[i].CellType == CellMarkdown {
			n++
		}
	}
	return n
}

// Detect reports whether path looks like a Jupyter notebook: the .ipynb
// extension plus a leading JSON object token. It never decodes the full
// document, so directory walks stay cheap.
func Detect(path string) bool {
	if strings.ToLower(filepath.Ext(path)) != ".ipynb" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 64)
	n, _ := f.Read(buf)
	return firstToken(buf[:n]) == '{'
}
