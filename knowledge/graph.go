// Package knowledge mirrors the indexed corpus into Neo4j as Document, Page
// and Chunk nodes so it can be browsed outside the vector index.
package knowledge

import (
	"context"
	"fmt"
	stdpath "path"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/aslamsikder/VoiceRAG-Agent-System/domain"
)

type Document struct {
	Path   string
	Folder string
	Chunks []domain.Chunk
}

// Graph writes the catalog through a Neo4j driver.
type Graph struct {
	driver neo4j.DriverWithContext
}

func NewGraph(driver neo4j.DriverWithContext) *Graph {
	return &Graph{driver: driver}
}

// GroupBySource turns a flat chunk list into per-source documents, ordered
// by path.
func GroupBySource(chunks []domain.Chunk) []Document {
	bySource := make(map[string]*Document)
	for _, c := range chunks {
		doc, ok := bySource[c.Source]
		if !ok {
			folder := stdpath.Dir(c.Source)
			if folder == "." || folder == "/" {
				folder = ""
			}
			doc = &Document{Path: c.Source, Folder: folder}
			bySource[c.Source] = doc
		}
		doc.Chunks = append(doc.Chunks, c)
	}

	docs := make([]Document, 0, len(bySource))
	for _, doc := range bySource {
		docs = append(docs, *doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs
}

// SyncChunks replaces the whole catalog with the given chunks, matching the
// wholesale replacement of the vector index.
func (g *Graph) SyncChunks(ctx context.Context, chunks []domain.Chunk) error {
	if g.driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	docs := GroupBySource(chunks)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, query := range purgeQueries {
			if _, err := tx.Run(ctx, query, nil); err != nil {
				return nil, fmt.Errorf("clear catalog: %w", err)
			}
		}
		for _, doc := range docs {
			if err := syncDocument(ctx, tx, doc); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func syncDocument(ctx context.Context, tx neo4j.ManagedTransaction, doc Document) error {
	params := map[string]any{
		"path":   doc.Path,
		"folder": doc.Folder,
		"chunks": len(doc.Chunks),
	}

	if _, err := tx.Run(ctx, `
		MERGE (d:Document {path: $path})
		SET d.chunk_count = $chunks,
		    d.updated_at = datetime()
	`, params); err != nil {
		return fmt.Errorf("upsert document node: %w", err)
	}

	if doc.Folder != "" {
		if _, err := tx.Run(ctx, `
			MATCH (d:Document {path: $path})
			MERGE (f:Folder {name: $folder})
			MERGE (d)-[:IN_FOLDER]->(f)
		`, params); err != nil {
			return fmt.Errorf("upsert folder relation: %w", err)
		}
	}

	for _, chunk := range doc.Chunks {
		chunkParams := map[string]any{
			"path":        doc.Path,
			"chunk_id":    chunk.ID,
			"chunk_index": chunk.Index,
			"chunk_page":  chunk.Page,
			"chunk_text":  chunk.Content,
		}
		if _, err := tx.Run(ctx, `
			MATCH (d:Document {path: $path})
			MERGE (c:Chunk {id: $chunk_id})
			SET c.index = $chunk_index,
			    c.page = $chunk_page,
			    c.text = $chunk_text
			MERGE (d)-[:HAS_CHUNK {order: $chunk_index}]->(c)
		`, chunkParams); err != nil {
			return fmt.Errorf("upsert chunk node: %w", err)
		}

		if chunk.Page > 0 {
			if _, err := tx.Run(ctx, `
				MATCH (d:Document {path: $path}), (c:Chunk {id: $chunk_id})
				MERGE (p:Page {document: $path, number: $chunk_page})
				MERGE (d)-[:HAS_PAGE]->(p)
				MERGE (p)-[:HAS_CHUNK]->(c)
			`, chunkParams); err != nil {
				return fmt.Errorf("link chunk to page: %w", err)
			}
		}
	}
	return nil
}

var purgeQueries = []string{
	"MATCH (c:Chunk) DETACH DELETE c",
	"MATCH (p:Page) DETACH DELETE p",
	"MATCH (d:Document) DETACH DELETE d",
	"MATCH (f:Folder) DETACH DELETE f",
}

// Purge removes every catalog node.
func (g *Graph) Purge(ctx context.Context) error {
	if g.driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for _, query := range purgeQueries {
		result, err := session.Run(ctx, query, nil)
		if err != nil {
			return fmt.Errorf("purge catalog: %w", err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return fmt.Errorf("purge catalog: %w", err)
		}
	}
	return nil
}
