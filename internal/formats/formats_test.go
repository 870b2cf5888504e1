package formats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleNotebook = `{
 "cells": [
  {
   "cell_type": "markdown",
   "metadata": {},
   "source": "# Title"
  }
 ],
 "metadata": {},
 "nbformat": 4,
 "nbformat_minor": 5
}`

const sampleLaTeX = `\documentclass{article}
\usepackage{hyperref}
\begin{document}
Hello.
\end{document}
`

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestRegistryHandlers(t *testing.T) {
	handlers := Handlers()
	if len(handlers) < 2 {
		t.Fatalf("Expected at least 2 registered handlers, got %d", len(handlers))
	}

	for _, name := range []string{FormatNotebook, FormatLaTeX} {
		if _, ok := Lookup(name); !ok {
			t.Errorf("Lookup(%q) failed; handler not registered", name)
		}
	}
	if _, ok := Lookup("docx"); ok {
		t.Error("Lookup(docx) should fail")
	}
}

func TestNotebookDetect(t *testing.T) {
	dir := t.TempDir()
	h, ok := Lookup(FormatNotebook)
	if !ok {
		t.Fatal("notebook handler not registered")
	}

	subdir := filepath.Join(dir, "cases.ipynb")
	if err := os.Mkdir(subdir, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	tests := []struct {
		name       string
		path       string
		want       bool
		wantReason string
	}{
		{
			name: "real notebook",
			path: writeFile(t, dir, "good.ipynb", []byte(sampleNotebook)),
			want: true,
		},
		{
			name:       "wrong extension",
			path:       writeFile(t, dir, "notes.txt", []byte("text")),
			want:       false,
			wantReason: "not an .ipynb file",
		},
		{
			name:       "json array body",
			path:       writeFile(t, dir, "array.ipynb", []byte("[1, 2]")),
			want:       false,
			wantReason: "not a JSON object document",
		},
		{
			name:       "binary body with sqlite magic",
			path:       writeFile(t, dir, "fake.ipynb", []byte("SQLite format 3\x00")),
			want:       false,
			wantReason: "mismatch",
		},
		{
			name:       "directory",
			path:       subdir,
			want:       false,
			wantReason: "directory",
		},
		{
			name:       "missing file",
			path:       filepath.Join(dir, "absent.ipynb"),
			want:       false,
			wantReason: "cannot stat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Detect(tt.path)
			if err != nil {
				t.Fatalf("Detect() unexpected error: %v", err)
			}
			if res.Detected != tt.want {
				t.Errorf("Detect() = %v (%s), want %v", res.Detected, res.Reason, tt.want)
			}
			if tt.wantReason != "" && !strings.Contains(res.Reason, tt.wantReason) {
				t.Errorf("Reason = %q, want it to mention %q", res.Reason, tt.wantReason)
			}
			if tt.want && res.Format != FormatNotebook {
				t.Errorf("Format = %q, want %q", res.Format, FormatNotebook)
			}
		})
	}
}

func TestLaTeXDetect(t *testing.T) {
	dir := t.TempDir()
	h, ok := Lookup(FormatLaTeX)
	if !ok {
		t.Fatal("latex handler not registered")
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "tex file", path: writeFile(t, dir, "doc.tex", []byte(sampleLaTeX)), want: true},
		{name: "latex extension", path: writeFile(t, dir, "doc.latex", []byte(sampleLaTeX)), want: true},
		{name: "style file", path: writeFile(t, dir, "custom.sty", []byte("\\ProvidesPackage{custom}\n")), want: true},
		{name: "class file", path: writeFile(t, dir, "thesis.cls", []byte("\\ProvidesClass{thesis}\n")), want: true},
		{name: "markdown file", path: writeFile(t, dir, "readme.md", []byte("# hi")), want: false},
		{name: "gzip bytes in tex", path: writeFile(t, dir, "fake.tex", []byte{0x1f, 0x8b, 0x08, 0x00}), want: false},
		{name: "missing file", path: filepath.Join(dir, "absent.tex"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Detect(tt.path)
			if err != nil {
				t.Fatalf("Detect() unexpected error: %v", err)
			}
			if res.Detected != tt.want {
				t.Errorf("Detect() = %v (%s), want %v", res.Detected, res.Reason, tt.want)
			}
		})
	}
}

func TestDetectDispatch(t *testing.T) {
	dir := t.TempDir()

	nbPath := writeFile(t, dir, "doc.ipynb", []byte(sampleNotebook))
	res, err := Detect(nbPath)
	if err != nil {
		t.Fatalf("Detect() unexpected error: %v", err)
	}
	if !res.Detected || res.Format != FormatNotebook {
		t.Errorf("Detect(notebook) = %+v, want notebook", res)
	}

	texPath := writeFile(t, dir, "doc.tex", []byte(sampleLaTeX))
	res, err = Detect(texPath)
	if err != nil {
		t.Fatalf("Detect() unexpected error: %v", err)
	}
	if !res.Detected || res.Format != FormatLaTeX {
		t.Errorf("Detect(latex) = %+v, want latex", res)
	}

	binPath := writeFile(t, dir, "blob.bin", []byte{0x00, 0x01})
	res, err = Detect(binPath)
	if err != nil {
		t.Fatalf("Detect() unexpected error: %v", err)
	}
	if res.Detected {
		t.Errorf("Detect(binary) = %+v, want undetected", res)
	}
}

func TestIsNotebook(t *testing.T) {
	dir := t.TempDir()

	nbPath := writeFile(t, dir, "doc.ipynb", []byte(sampleNotebook))
	if !IsNotebook(nbPath) {
		t.Error("IsNotebook() = false for a real notebook")
	}

	texPath := writeFile(t, dir, "doc.tex", []byte(sampleLaTeX))
	if IsNotebook(texPath) {
		t.Error("IsNotebook() = true for a LaTeX file")
	}
}
