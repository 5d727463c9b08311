package models

// Page is the extracted text of one PDF page
type Page struct {
	Source string `json:"source"`
	Number int    `json:"page"`
	Text   string `json:"text"`
}

// Document is a loaded source file, pages in physical order
type Document struct {
	Source     string `json:"source"`
	Pages      []Page `json:"pages"`
	TotalPages int    `json:"total_pages"`
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	ID     string `json:"id"`
	Seq    int    `json:"seq"`
	Text   string `json:"text"`
	Page   int    `json:"page"`
	Source string `json:"source"`
}

// ScoredChunk is a retrieval hit; lower distance is nearer
type ScoredChunk struct {
	Chunk
	Distance float32 `json:"distance"`
}

type SourceChunk struct {
	Text   string `json:"text"`
	Page   int    `json:"page"`
	Source string `json:"source"`
}

// Answer is the structured result of one question
type Answer struct {
	Question     string        `json:"question"`
	Answer       string        `json:"answer"`
	SourceChunks []SourceChunk `json:"source_chunks"`
}

// NewAnswer keeps the retrieval order of hits as the source attribution
func NewAnswer(question, answer string, hits []ScoredChunk) *Answer {
	sources := make([]SourceChunk, len(hits))
	for i, h := range hits {
		sources[i] = SourceChunk{Text: h.Text, Page: h.Page, Source: h.Source}
	}
	return &Answer{
		Question:     question,
		Answer:       answer,
		SourceChunks: sources,
	}
}
