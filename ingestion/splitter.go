package ingestion

import (
	"strings"

	"github.com/google/uuid"

	"github.com/aslamsikder/VoiceRAG-Agent-System/domain"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// separators are tried in order: paragraph, line, sentence, word.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("? "),
	[]rune("! "),
	[]rune(" "),
}

// Splitter cuts text into chunks of at most size runes. Each chunk after the
// first starts with the last overlap runes of the previous one.
type Splitter struct {
	size    int
	overlap int
}

type SplitterOption func(*Splitter)

func WithChunkSize(size int) SplitterOption {
	return func(s *Splitter) {
		if size > 0 {
			s.size = size
		}
	}
}

func WithOverlap(overlap int) SplitterOption {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

func NewSplitter(opts ...SplitterOption) *Splitter {
	s := &Splitter{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlap >= s.size {
		s.overlap = s.size / 4
	}
	return s
}

func (s *Splitter) Size() int    { return s.size }
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the chunks of text. Whitespace-only input yields none.
//
// Consecutive chunks share exactly the configured overlap, except around a
// whitespace run longer than the chunk size: chunks falling entirely inside
// the run are dropped, so the chunk after it overlaps only whitespace.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	chunks := make([]string, 0, n/(s.size-s.overlap)+1)

	start := 0
	for {
		end := start + s.size
		if end >= n {
			if chunk := string(runes[start:]); strings.TrimSpace(chunk) != "" {
				chunks = append(chunks, chunk)
			}
			return chunks
		}

		cut := s.boundary(runes, start, end)
		if chunk := string(runes[start:cut]); strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		start = cut - s.overlap
	}
}

// boundary picks where the chunk starting at start should end, no later
// than end. The cut always lands past start+overlap so the next chunk
// advances.
func (s *Splitter) boundary(runes []rune, start, end int) int {
	floor := start + s.overlap + 1
	if half := start + s.size/2; half > floor {
		floor = half
	}

	for _, sep := range separators {
		for cut := end; cut >= floor; cut-- {
			if hasSuffixAt(runes, cut, sep) {
				return cut
			}
		}
	}
	return end
}

func hasSuffixAt(runes []rune, cut int, sep []rune) bool {
	if cut < len(sep) {
		return false
	}
	for i, r := range sep {
		if runes[cut-len(sep)+i] != r {
			return false
		}
	}
	return true
}

// SplitDocuments chunks every document, carrying source and page metadata
// onto each chunk. Index counts chunks within a single document.
func (s *Splitter) SplitDocuments(docs []domain.Document) []domain.Chunk {
	chunks := make([]domain.Chunk, 0)
	for _, doc := range docs {
		for i, text := range s.Split(doc.Content) {
			chunks = append(chunks, domain.Chunk{
				ID:      uuid.NewString(),
				Content: text,
				Source:  doc.Source,
				Page:    doc.Page,
				Index:   i,
			})
		}
	}
	return chunks
}
