// Package model provides shared data models for the pdfqa service.
package model

import (
	"time"
)

// ChunkMeta carries the metadata attached to every indexed chunk.
// The same fields travel into the vector store payload and back out
// with search results.
type ChunkMeta struct {
	Filename          string  `json:"filename"`
	Page              int     `json:"page"`
	ChunkIndex        int     `json:"chunk_index"`
	UploadTimestamp   string  `json:"upload_timestamp"`
	ContentLength     int     `json:"content_length"`
	ChunkType         string  `json:"chunk_type"`
	AcademicRelevance float64 `json:"academic_relevance"`
}

// Chunk is a piece of document text ready for embedding and indexing.
type Chunk struct {
	ID      string    `json:"id"`
	Content string    `json:"content"`
	Meta    ChunkMeta `json:"meta"`
}

// Document is a cached parsed document.
type Document struct {
	Filename string    `json:"filename"`
	FullText string    `json:"full_text"`
	Chunks   []Chunk   `json:"chunks"`
	Pages    int       `json:"pages"`
	StoredAt time.Time `json:"stored_at"`
}

// SourceRef identifies one retrieved chunk in a query answer.
type SourceRef struct {
	Filename   string  `json:"filename"`
	Page       int     `json:"page"`
	ChunkIndex int     `json:"chunk_index"`
	ChunkType  string  `json:"chunk_type"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// SearchStats aggregates retrieval quality for one query.
type SearchStats struct {
	TotalSources      int            `json:"total_sources"`
	AvgScore          float64        `json:"avg_score"`
	BestScore         float64        `json:"best_score"`
	ChunkTypes        map[string]int `json:"chunk_types"`
	AcademicRelevance float64        `json:"academic_relevance"`
}

// QueryResult is the full answer to a question, including provenance.
type QueryResult struct {
	Answer         string       `json:"answer"`
	QueryType      string       `json:"query_type"` // generic or specific
	FormatStyle    string       `json:"format_style,omitempty"`
	Sources        []SourceRef  `json:"sources,omitempty"`
	Stats          *SearchStats `json:"stats,omitempty"`
	UsedDirect     bool         `json:"used_direct"`
	ProcessingTime float64      `json:"processing_time_seconds"`
}

// IndexResult reports the outcome of indexing one document.
type IndexResult struct {
	Filename   string  `json:"filename"`
	Chunks     int     `json:"chunks"`
	Pages      int     `json:"pages"`
	ElapsedSec float64 `json:"elapsed_seconds"`
}
