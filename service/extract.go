package service

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractionError is a failure to pull plain text out of a stored
// document.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract text from %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ExtractText returns the plain text of the document at path. Supported
// formats follow what the upload endpoint accepts.
func ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return extractDocxText(path)
	case ".pdf":
		return extractPDFText(path)
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", &ExtractionError{Path: path, Err: err}
		}
		return string(data), nil
	default:
		return "", &ExtractionError{Path: path, Err: fmt.Errorf("unsupported file type %q", filepath.Ext(path))}
	}
}

// extractDocxText reads word/document.xml from the docx archive and
// collects the text runs, one line per paragraph.
func extractDocxText(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	defer archive.Close()

	var document *zip.File
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			document = file
			break
		}
	}
	if document == nil {
		return "", &ExtractionError{Path: path, Err: fmt.Errorf("archive has no word/document.xml")}
	}

	rc, err := document.Open()
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	defer rc.Close()

	var sb strings.Builder
	decoder := xml.NewDecoder(rc)
	inTextRun := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &ExtractionError{Path: path, Err: err}
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inTextRun = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inTextRun = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inTextRun {
				sb.Write(t)
			}
		}
	}

	return sb.String(), nil
}

func extractPDFText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	defer file.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, content); err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}

	return sb.String(), nil
}
