package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/docmind/backend/internal/storage/models"
	"github.com/docmind/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_folders_user ON folders(user_id);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		search_name TEXT NOT NULL,
		folder_id TEXT,
		doc_type TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (folder_id) REFERENCES folders(id) ON DELETE SET NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);
	CREATE INDEX IF NOT EXISTS idx_documents_search ON documents(user_id, search_name);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		location TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON document_chunks(document_id);

	CREATE TABLE IF NOT EXISTS conversation_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_conversation ON conversation_turns(conversation_id, id);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		conversation_id TEXT,
		query_text TEXT NOT NULL,
		domain TEXT,
		answer TEXT,
		confidence REAL,
		source_count INTEGER,
		cached INTEGER DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_user ON query_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Schema initialized")
	return nil
}

// CreateFolder registers a folder for a user.
func (c *Client) CreateFolder(ctx context.Context, folder *models.Folder) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO folders (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		folder.ID, folder.UserID, folder.Name, folder.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

// FolderByName resolves a folder by its display name. Returns nil when the
// user has no folder with that name.
func (c *Client) FolderByName(ctx context.Context, userID, name string) (*models.Folder, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, created_at FROM folders
		WHERE user_id = ? AND name = ? COLLATE NOCASE`,
		userID, name,
	)

	var folder models.Folder
	var createdAt int64
	if err := row.Scan(&folder.ID, &folder.UserID, &folder.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query folder: %w", err)
	}
	folder.CreatedAt = time.Unix(createdAt, 0)

	return &folder, nil
}

// InsertDocument registers a document. SearchName is stored lowercased; the
// lookup path compares against the normalized form the classifier produces.
func (c *Client) InsertDocument(ctx context.Context, doc *models.Document) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, name, search_name, folder_id, doc_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?)`,
		doc.ID, doc.UserID, doc.Name, strings.ToLower(doc.SearchName), doc.FolderID,
		doc.DocType, doc.CreatedAt.Unix(), doc.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (c *Client) InsertChunk(ctx context.Context, chunk *models.DocumentChunk) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO document_chunks (id, document_id, chunk_index, text, location, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Text, chunk.Location, chunk.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// DeleteDocument removes a document and its chunks. Scoped to the owning
// user so one user cannot delete another's documents by ID.
func (c *Client) DeleteDocument(ctx context.Context, userID, documentID string) error {
	res, err := c.db.ExecContext(ctx, `
		DELETE FROM documents WHERE id = ? AND user_id = ?`,
		documentID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	if _, err := c.db.ExecContext(ctx, `
		DELETE FROM document_chunks WHERE document_id = ?`, documentID,
	); err != nil {
		return fmt.Errorf("failed to delete document chunks: %w", err)
	}
	return nil
}

// LookupFileLocation resolves a normalized file name to its document and
// folder. A nil result with a nil error means not found; that is a success
// path for the router, not an error.
func (c *Client) LookupFileLocation(ctx context.Context, userID, name string) (*models.FileLocation, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT d.id, d.name, COALESCE(f.name, '')
		FROM documents d
		LEFT JOIN folders f ON f.id = d.folder_id
		WHERE d.user_id = ? AND d.search_name = ?
		ORDER BY d.updated_at DESC
		LIMIT 1`,
		userID, strings.ToLower(name),
	)

	var loc models.FileLocation
	err := row.Scan(&loc.DocumentID, &loc.Name, &loc.FolderName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up file location: %w", err)
	}

	return &loc, nil
}

func (c *Client) ListFiles(ctx context.Context, userID string, filters models.ListFilters) ([]models.FileInfo, error) {
	query := `
		SELECT d.id, d.name, COALESCE(f.name, ''), COALESCE(d.doc_type, ''), d.created_at
		FROM documents d
		LEFT JOIN folders f ON f.id = d.folder_id
		WHERE d.user_id = ?`
	args := []interface{}{userID}

	if filters.FolderName != "" {
		query += ` AND LOWER(f.name) = ?`
		args = append(args, strings.ToLower(filters.FolderName))
	}
	if filters.DocType != "" {
		query += ` AND d.doc_type = ?`
		args = append(args, filters.DocType)
	}
	query += ` ORDER BY d.name`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []models.FileInfo
	for rows.Next() {
		var f models.FileInfo
		var createdAt int64
		if err := rows.Scan(&f.DocumentID, &f.Name, &f.FolderName, &f.DocType, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		f.CreatedAt = time.Unix(createdAt, 0)
		files = append(files, f)
	}

	return files, rows.Err()
}

// SearchMentions finds literal occurrences of a phrase across the user's
// document chunks, one snippet per chunk.
func (c *Client) SearchMentions(ctx context.Context, userID, phrase string) ([]models.Mention, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT d.id, d.name, ch.text, COALESCE(ch.location, '')
		FROM document_chunks ch
		JOIN documents d ON d.id = ch.document_id
		WHERE d.user_id = ? AND ch.text LIKE ? ESCAPE '\'
		ORDER BY d.name, ch.chunk_index
		LIMIT 50`,
		userID, "%"+escapeLike(phrase)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search mentions: %w", err)
	}
	defer rows.Close()

	var mentions []models.Mention
	for rows.Next() {
		var m models.Mention
		var text string
		if err := rows.Scan(&m.DocumentID, &m.DocumentName, &text, &m.Location); err != nil {
			return nil, fmt.Errorf("failed to scan mention row: %w", err)
		}
		m.Snippet = snippetAround(text, phrase, 120)
		mentions = append(mentions, m)
	}

	return mentions, rows.Err()
}

// RecentTurns returns the last n turns of a conversation in chronological
// order.
func (c *Client) RecentTurns(ctx context.Context, conversationID string, n int) ([]models.ConversationTurn, error) {
	if n <= 0 {
		n = 10
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, text, created_at
		FROM conversation_turns
		WHERE conversation_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		conversationID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		t.CreatedAt = time.Unix(createdAt, 0)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

func (c *Client) AppendTurn(ctx context.Context, conversationID, role, text string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO conversation_turns (conversation_id, role, text, created_at)
		VALUES (?, ?, ?, ?)`,
		conversationID, role, text, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

func (c *Client) InsertQueryRecord(ctx context.Context, record *models.QueryRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO query_history
			(id, user_id, conversation_id, query_text, domain, answer, confidence, source_count, cached, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.UserID, record.ConversationID, record.QueryText, record.Domain,
		record.Answer, record.Confidence, record.SourceCount, boolToInt(record.Cached),
		record.LatencyMS, record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}
	return nil
}

func (c *Client) QueryHistory(ctx context.Context, userID string, limit int) ([]models.QueryRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user_id, conversation_id, query_text, domain, answer, confidence, source_count, cached, latency_ms, created_at
		FROM query_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load query history: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var r models.QueryRecord
		var cached int
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.ConversationID, &r.QueryText, &r.Domain,
			&r.Answer, &r.Confidence, &r.SourceCount, &cached, &r.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		r.Cached = cached != 0
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// snippetAround trims chunk text to a window centered on the first phrase
// occurrence.
func snippetAround(text, phrase string, radius int) string {
	idx := strings.Index(strings.ToLower(text), strings.ToLower(phrase))
	if idx < 0 {
		if len(text) > 2*radius {
			return text[:2*radius] + "…"
		}
		return text
	}

	start := idx - radius
	if start < 0 {
		start = 0
	}
	end := idx + len(phrase) + radius
	if end > len(text) {
		end = len(text)
	}

	snippet := text[start:end]
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(text) {
		snippet += "…"
	}
	return snippet
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
