package milvus

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/docmind/backend/internal/retrieval"
	"github.com/docmind/backend/pkg/logger"
)

// Client adapts the milvus index to the retrieval.Searcher contract. The
// collection stores one row per document chunk, partition-keyed by user.
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

func NewClient(endpoint, apiKey, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Private document chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:       "user_id",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "document_id",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "document_name",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "256"},
			},
			{
				Name:       "content",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "4096"},
			},
			{
				Name:       "location",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "128"},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.COSINE, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index spec: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))
	return nil
}

// ChunkRecord is one indexed chunk row.
type ChunkRecord struct {
	ChunkID      string
	Embedding    []float32
	UserID       string
	DocumentID   string
	DocumentName string
	Content      string
	Location     string
}

func (m *Client) Insert(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	userIDs := make([]string, len(records))
	documentIDs := make([]string, len(records))
	documentNames := make([]string, len(records))
	contents := make([]string, len(records))
	locations := make([]string, len(records))

	for i, r := range records {
		chunkIDs[i] = r.ChunkID
		embeddings[i] = r.Embedding
		userIDs[i] = r.UserID
		documentIDs[i] = r.DocumentID
		documentNames[i] = r.DocumentName
		contents[i] = r.Content
		locations[i] = r.Location
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("user_id", userIDs),
		entity.NewColumnVarChar("document_id", documentIDs),
		entity.NewColumnVarChar("document_name", documentNames),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("location", locations),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks indexed", zap.Int("count", len(records)))
	return nil
}

// SearchSimilar implements retrieval.Searcher. Scores from the COSINE metric
// are used directly as similarity in [0,1]; the index additionally prunes
// below minSimilarity so weak matches never cross the wire.
func (m *Client) SearchSimilar(ctx context.Context, vector []float32, userID string, scope []string, topK int, minSimilarity float64) ([]retrieval.Chunk, error) {
	expr := fmt.Sprintf(`user_id == "%s"`, userID)
	if len(scope) > 0 {
		quoted := make([]string, len(scope))
		for i, id := range scope {
			quoted[i] = fmt.Sprintf("%q", id)
		}
		expr += fmt.Sprintf(` && document_id in [%s]`, strings.Join(quoted, ", "))
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}
	sp.AddRadius(minSimilarity)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"chunk_id", "document_id", "document_name", "content", "location"},
		[]entity.Vector{entity.FloatVector(vector)},
		"embedding",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	chunks := make([]retrieval.Chunk, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			chunkID, _ := sr.Fields.GetColumn("chunk_id").Get(i)
			documentID, _ := sr.Fields.GetColumn("document_id").Get(i)
			documentName, _ := sr.Fields.GetColumn("document_name").Get(i)
			content, _ := sr.Fields.GetColumn("content").Get(i)
			location, _ := sr.Fields.GetColumn("location").Get(i)

			chunks = append(chunks, retrieval.Chunk{
				ChunkID:      chunkID.(string),
				DocumentID:   documentID.(string),
				DocumentName: documentName.(string),
				Content:      content.(string),
				Location:     location.(string),
				Similarity:   float64(sr.Scores[i]),
			})
		}
	}

	logger.Debug("Vector search completed",
		zap.Int("top_k", topK),
		zap.Int("results", len(chunks)),
		zap.String("filter", expr),
	)

	return chunks, nil
}

// DeleteDocument removes every indexed chunk of a document, e.g. when the
// document is deleted upstream.
func (m *Client) DeleteDocument(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf(`document_id == %q`, documentID)
	if err := m.client.Delete(ctx, m.collectionName, "", expr); err != nil {
		return fmt.Errorf("failed to delete document chunks: %w", err)
	}
	return nil
}
