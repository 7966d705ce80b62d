package ingestion

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dslipak/pdf"
)

// DefaultFileTypes are the extensions folder ingestion picks up when the
// caller does not narrow them.
var DefaultFileTypes = []string{".pdf", ".txt", ".md"}

// ScanFolder returns the files under root whose extension is in
// fileTypes, sorted for reproducible job ordering. Subdirectories are
// only entered when recursive is set. An empty fileTypes means
// DefaultFileTypes.
func ScanFolder(root string, fileTypes []string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scanning folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanning folder: %s is not a directory", root)
	}

	if len(fileTypes) == 0 {
		fileTypes = DefaultFileTypes
	}
	wanted := make(map[string]bool, len(fileTypes))
	for _, ext := range fileTypes {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		wanted[strings.ToLower(ext)] = true
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if wanted[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning folder: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile loads a file's text content and reports its document type.
// PDF text is extracted page by page; everything else is read verbatim.
func ReadFile(path string) (text, documentType string, err error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err = readPDF(path)
		return text, "pdf", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "text", fmt.Errorf("reading file: %w", err)
	}
	return string(data), "text", nil
}

func readPDF(path string) (string, error) {
	reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

// FileMetadata derives ingestion metadata for a scanned file: the file
// path for dedup, the base name, and a title from the name without
// extension.
func FileMetadata(path string) map[string]any {
	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	return map[string]any{
		"title":     title,
		"filename":  base,
		"file_path": path,
		"source":    "folder",
	}
}
