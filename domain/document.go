// Package domain holds the value types shared by ingestion and retrieval.
package domain

// Document is the raw text of one loaded source. PDF sources yield one
// Document per page; Page is zero for sources without pages.
type Document struct {
	Content string
	Source  string
	Page    int
}

// Chunk is a contiguous slice of a Document's text.
type Chunk struct {
	ID      string
	Content string
	Source  string
	Page    int
	// Index is the chunk's position within its source document.
	Index int
}
