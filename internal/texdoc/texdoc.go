// Package texdoc patches LaTeX documents before PDF compilation.
//
// The one patch it knows is adding pdftitle/pdfauthor assignments to the
// first \hypersetup{ block so the produced PDF carries document metadata.
// The patch is idempotent and a document without a \hypersetup{ block is
// left alone.
package texdoc

import (
	"fmt"
	"os"
	"strings"

	"github.com/texforge/nbprep/core/errors"
	"github.com/texforge/nbprep/internal/backup"
	"github.com/texforge/nbprep/internal/fileutil"
)

// hypersetupAnchor is where metadata assignments get inserted.
const hypersetupAnchor = `\hypersetup{`

// Metadata holds the PDF metadata to inject.
type Metadata struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// PatchOutcome describes what PatchHyperref did.
type PatchOutcome string

const (
	// PatchApplied means the metadata was inserted.
	PatchApplied PatchOutcome = "applied"
	// PatchAlreadyPresent means the document already carries this title.
	PatchAlreadyPresent PatchOutcome = "already_present"
	// PatchAnchorNotFound means no \hypersetup{ block exists. The document
	// is returned unchanged; callers treat this as informational.
	PatchAnchorNotFound PatchOutcome = "anchor_not_found"
)

// PatchHyperref inserts pdftitle and pdfauthor assignments after the first
// \hypersetup{ and returns the patched content. A document that already
// contains pdftitle={Title} comes back unchanged as PatchAlreadyPresent, so
// running the patch twice is byte-identical to running it once.
func PatchHyperref(content string, meta Metadata) (string, PatchOutcome) {
	guard := fmt.Sprintf("pdftitle={%s}", meta.Title)
	if strings.Contains(content, guard) {
		return content, PatchAlreadyPresent
	}

	i := strings.Index(content, hypersetupAnchor)
	if i < 0 {
		return content, PatchAnchorNotFound
	}

	insert := fmt.Sprintf("\n      pdftitle={%s},\n      pdfauthor={%s},\n", meta.Title, meta.Author)
	pos := i + len(hypersetupAnchor)
	return content[:pos] + insert + content[pos:], PatchApplied
}

// PatchFile applies PatchHyperref to a file in place. The file is rewritten
// only when the patch actually applied; withBackup snapshots it first. On
// error nothing has been written and the outcome is empty.
func PatchFile(path string, meta Metadata, withBackup bool) (PatchOutcome, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.NewIO("stat", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewIO("read", path, err)
	}

	patched, outcome := PatchHyperref(string(data), meta)
	if outcome != PatchApplied {
		return outcome, nil
	}

	if withBackup {
		if _, err := backup.Create(path); err != nil {
			return "", err
		}
	}
	if err := fileutil.WriteFileAtomic(path, []byte(patched), info.Mode().Perm()); err != nil {
		return "", errors.NewIO("write", path, err)
	}
	return PatchApplied, nil
}
