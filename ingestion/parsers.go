package ingestion

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/aslamsikder/VoiceRAG-Agent-System/domain"
)

// LoadFile reads one file into documents. source is recorded on every
// document; PDFs yield one document per non-empty page.
func LoadFile(path, source string) ([]domain.Document, error) {
	load, ok := loaders[DetectFormat(path)]
	if !ok {
		return nil, fmt.Errorf("unsupported document format: %s", path)
	}
	return load(path, source)
}

func loadText(path, source string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("file is not valid UTF-8 text")
	}
	content := normalizePlainText(string(data))
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	return []domain.Document{{Content: content, Source: source}}, nil
}

func loadPDF(path, source string) (docs []domain.Document, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("extract pdf text: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, textErr := page.GetPlainText(nil)
		if textErr != nil {
			return nil, fmt.Errorf("extract pdf page %d: %w", i, textErr)
		}
		text = normalizePlainText(text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, domain.Document{Content: text, Source: source, Page: i})
	}
	return docs, nil
}

func loadCSV(path, source string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	headers := records[0]
	rows := make([]string, 0, len(records)-1)
	for idx, row := range records[1:] {
		rows = append(rows, formatCSVRow(headers, row, idx))
	}
	return []domain.Document{{Content: strings.Join(rows, "\n\n"), Source: source}}, nil
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

func formatCSVRow(headers, row []string, idx int) string {
	builder := &strings.Builder{}
	builder.WriteString(fmt.Sprintf("Row %d", idx+1))

	limit := min(len(headers), len(row))
	for i := 0; i < limit; i++ {
		header := strings.TrimSpace(headers[i])
		if header == "" {
			header = fmt.Sprintf("Column %d", i+1)
		}
		builder.WriteString("\n")
		builder.WriteString(header)
		builder.WriteString(": ")
		builder.WriteString(strings.TrimSpace(row[i]))
	}

	for i := len(headers); i < len(row); i++ {
		builder.WriteString(fmt.Sprintf("\nExtra %d: %s", i+1, strings.TrimSpace(row[i])))
	}

	return builder.String()
}
