// Package backup writes compressed copies of files before they are
// modified in place. Backups sit next to the original with a .bak.xz
// (or .bak.gz) suffix and can be restored byte for byte.
package backup

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/texforge/nbprep/core/errors"
)

// CompressionType specifies the compression algorithm for backups.
type CompressionType string

const (
	// CompressionXZ uses XZ/LZMA2 compression (default, best ratio).
	CompressionXZ CompressionType = "xz"
	// CompressionGzip uses gzip compression (stdlib, faster).
	CompressionGzip CompressionType = "gzip"
)

// Options configures backup creation.
type Options struct {
	// Compression specifies the compression algorithm. Defaults to XZ.
	Compression CompressionType
}

// DefaultOptions returns the default backup options (XZ compression).
func DefaultOptions() *Options {
	return &Options{
		Compression: CompressionXZ,
	}
}

// Path returns the backup location for the given original path.
func Path(path string, compression CompressionType) string {
	if compression == CompressionGzip {
		return path + ".bak.gz"
	}
	return path + ".bak.xz"
}

// Create writes a compressed backup of path using default options and
// returns the backup path.
func Create(path string) (string, error) {
	return CreateWithOptions(path, DefaultOptions())
}

// CreateWithOptions writes a compressed backup of path and returns the
// backup path. An existing backup for the same path is overwritten.
func CreateWithOptions(path string, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	src, err := os.Open(path)
	if err != nil {
		return "", errors.NewIO("open", path, err)
	}
	defer src.Close()

	backupPath := Path(path, opts.Compression)

	// Stream through a temp file so a crash never leaves a truncated backup.
	tempFile, err := os.CreateTemp(filepath.Dir(backupPath), ".bak-*")
	if err != nil {
		return "", errors.NewIO("create temp file", backupPath, err)
	}
	tempPath := tempFile.Name()

	var compressWriter io.WriteCloser
	switch opts.Compression {
	case CompressionGzip:
		compressWriter, err = gzip.NewWriterLevel(tempFile, gzip.BestCompression)
		if err != nil {
			tempFile.Close()
			os.Remove(tempPath)
			return "", fmt.Errorf("failed to create gzip writer: %w", err)
		}
	case CompressionXZ:
		fallthrough
	default:
		compressWriter, err = xz.NewWriter(tempFile)
		if err != nil {
			tempFile.Close()
			os.Remove(tempPath)
			return "", fmt.Errorf("failed to create xz writer: %w", err)
		}
	}

	if _, err := io.Copy(compressWriter, src); err != nil {
		compressWriter.Close()
		tempFile.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to compress %s: %w", path, err)
	}

	if err := compressWriter.Close(); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to finalize compression: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return "", errors.NewIO("close temp file", tempPath, err)
	}

	if err := os.Rename(tempPath, backupPath); err != nil {
		os.Remove(tempPath)
		return "", errors.NewIO("rename", backupPath, err)
	}

	return backupPath, nil
}

// DetectCompression identifies the compression format from magic bytes.
func DetectCompression(r io.Reader) (CompressionType, error) {
	magic := make([]byte, 6)
	n, err := r.Read(magic)
	if err != nil || n < 2 {
		return "", errors.NewUnsupported("compression format", "file too short to identify")
	}

	// Check for gzip magic (1f 8b)
	if magic[0] == 0x1f && magic[1] == 0x8b {
		return CompressionGzip, nil
	}

	// Check for XZ magic (fd 37 7a 58 5a 00)
	if n >= 6 && magic[0] == 0xfd && magic[1] == 0x37 && magic[2] == 0x7a &&
		magic[3] == 0x58 && magic[4] == 0x5a && magic[5] == 0x00 {
		return CompressionXZ, nil
	}

	return "", errors.NewUnsupported("compression format", "unknown magic bytes")
}

// Restore decompresses backupPath over the original file and returns
// the restored path. The compression format is auto-detected.
func Restore(backupPath string) (string, error) {
	original, ok := originalPath(backupPath)
	if !ok {
		return "", errors.NewValidation("path", fmt.Sprintf("%s does not carry a recognized backup suffix", backupPath))
	}

	f, err := os.Open(backupPath)
	if err != nil {
		return "", errors.NewIO("open", backupPath, err)
	}
	defer f.Close()

	compression, err := DetectCompression(f)
	if err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", errors.NewIO("seek", backupPath, err)
	}

	var reader io.Reader
	switch compression {
	case CompressionGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return "", fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	default:
		xzReader, err := xz.NewReader(f)
		if err != nil {
			return "", fmt.Errorf("failed to create xz reader: %w", err)
		}
		reader = xzReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to decompress %s: %w", backupPath, err)
	}

	if err := os.WriteFile(original, data, 0644); err != nil {
		return "", errors.NewIO("write", original, err)
	}

	return original, nil
}

// originalPath strips the backup suffix, reporting whether the path
// carries one.
func originalPath(backupPath string) (string, bool) {
	for _, suffix := range []string{".bak.xz", ".bak.gz"} {
		if len(backupPath) > len(suffix) && backupPath[len(backupPath)-len(suffix):] == suffix {
			return backupPath[:len(backupPath)-len(suffix)], true
		}
	}
	return "", false
}
