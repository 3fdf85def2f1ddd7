package models

import "time"

type Document struct {
	ID         string
	UserID     string
	Name       string
	SearchName string
	FolderID   string
	DocType    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Folder struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

type DocumentChunk struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Text       string
	Location   string
	CreatedAt  time.Time
}

// FileLocation answers "where is X": the document and the folder it lives in.
type FileLocation struct {
	DocumentID string
	Name       string
	FolderName string
}

type FileInfo struct {
	DocumentID string
	Name       string
	FolderName string
	DocType    string
	CreatedAt  time.Time
}

type ListFilters struct {
	FolderName string
	DocType    string
}

// Mention is one phrase occurrence inside a document chunk.
type Mention struct {
	DocumentID   string
	DocumentName string
	Snippet      string
	Location     string
}

type ConversationTurn struct {
	ID             int
	ConversationID string
	Role           string
	Text           string
	CreatedAt      time.Time
}

type QueryRecord struct {
	ID             string
	UserID         string
	ConversationID string
	QueryText      string
	Domain         string
	Answer         string
	Confidence     float64
	SourceCount    int
	Cached         bool
	LatencyMS      int
	CreatedAt      time.Time
}
