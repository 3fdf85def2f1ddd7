package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docmind/backend/internal/classify"
	"github.com/docmind/backend/internal/storage/models"
	"github.com/docmind/backend/internal/storage/sqlite"
	"github.com/docmind/backend/internal/vector/milvus"
	"github.com/docmind/backend/pkg/logger"
)

// Embedder batch-vectorizes chunk texts. Order of the output matches the
// input.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// AnswerCache is the cached-answer tier to purge when the corpus changes.
type AnswerCache interface {
	Purge(ctx context.Context)
}

// Processor indexes one already-extracted text document: registers it in
// SQLite, chunks the text, embeds the chunks, and pushes them into the
// vector collection.
type Processor struct {
	db       *sqlite.Client
	vectorDB *milvus.Client
	embedder Embedder
	answers  AnswerCache
}

func NewProcessor(db *sqlite.Client, vectorDB *milvus.Client, embedder Embedder, answers AnswerCache) *Processor {
	return &Processor{
		db:       db,
		vectorDB: vectorDB,
		embedder: embedder,
		answers:  answers,
	}
}

// Request is one document to index. Content is plain text; extracting it
// from the source format happens upstream.
type Request struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Folder  string `json:"folder,omitempty"`
	DocType string `json:"doc_type,omitempty"`
	Content string `json:"content"`
}

// Result reports what indexing produced.
type Result struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	logger.Info("Indexing document",
		zap.String("name", req.Name),
		zap.String("user_id", req.UserID),
	)

	folderID, err := p.resolveFolder(ctx, req.UserID, req.Folder)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	doc := &models.Document{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		Name:       req.Name,
		SearchName: classify.NormalizeName(req.Name),
		FolderID:   folderID,
		DocType:    req.DocType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.db.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}

	texts := chunkText(req.Content)
	if len(texts) == 0 {
		return &Result{DocumentID: doc.ID}, nil
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	records := make([]milvus.ChunkRecord, 0, len(texts))
	for i, text := range texts {
		chunkID := fmt.Sprintf("%s_%d", doc.ID, i)
		location := fmt.Sprintf("chunk %d", i+1)

		if err := p.db.InsertChunk(ctx, &models.DocumentChunk{
			ID:         chunkID,
			DocumentID: doc.ID,
			ChunkIndex: i,
			Text:       text,
			Location:   location,
			CreatedAt:  now,
		}); err != nil {
			return nil, err
		}

		records = append(records, milvus.ChunkRecord{
			ChunkID:      chunkID,
			Embedding:    embeddings[i],
			UserID:       req.UserID,
			DocumentID:   doc.ID,
			DocumentName: req.Name,
			Content:      text,
			Location:     location,
		})
	}

	if err := p.vectorDB.Insert(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to insert vectors: %w", err)
	}

	logger.Info("Document indexed",
		zap.String("document_id", doc.ID),
		zap.Int("chunks", len(records)),
	)

	p.purgeAnswers(ctx)

	return &Result{DocumentID: doc.ID, Chunks: len(records)}, nil
}

// Delete removes a document from both stores.
func (p *Processor) Delete(ctx context.Context, userID, documentID string) error {
	if err := p.vectorDB.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if err := p.db.DeleteDocument(ctx, userID, documentID); err != nil {
		return err
	}

	p.purgeAnswers(ctx)
	return nil
}

// purgeAnswers drops cached answers after the corpus changes; a stale answer
// may cite a document that no longer exists.
func (p *Processor) purgeAnswers(ctx context.Context) {
	if p.answers == nil {
		return
	}
	p.answers.Purge(ctx)
}

func (p *Processor) resolveFolder(ctx context.Context, userID, name string) (string, error) {
	if name == "" {
		return "", nil
	}

	folder, err := p.db.FolderByName(ctx, userID, name)
	if err != nil {
		return "", err
	}
	if folder != nil {
		return folder.ID, nil
	}

	folder = &models.Folder{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := p.db.CreateFolder(ctx, folder); err != nil {
		return "", err
	}
	return folder.ID, nil
}
