// Package ingestion loads a corpus directory, chunks and embeds it, and
// persists the resulting vector index.
package ingestion

import (
	"path/filepath"
	"strings"

	"github.com/aslamsikder/VoiceRAG-Agent-System/domain"
)

type DocumentFormat string

const (
	FormatUnknown  DocumentFormat = ""
	FormatText     DocumentFormat = "text"
	FormatMarkdown DocumentFormat = "markdown"
	// FormatPDF is loaded one page at a time.
	FormatPDF DocumentFormat = "pdf"
	FormatCSV DocumentFormat = "csv"
)

type loaderFunc func(path, source string) ([]domain.Document, error)

var formatByExt = map[string]DocumentFormat{
	".txt":      FormatText,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".pdf":      FormatPDF,
	".csv":      FormatCSV,
}

var loaders = map[DocumentFormat]loaderFunc{
	FormatText:     loadText,
	FormatMarkdown: loadText,
	FormatPDF:      loadPDF,
	FormatCSV:      loadCSV,
}

// DetectFormat maps a file extension, case-insensitively, to its format.
func DetectFormat(path string) DocumentFormat {
	return formatByExt[strings.ToLower(filepath.Ext(path))]
}
