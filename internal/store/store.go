package store

import (
	"database/sql"
	"errors"
	"fmt"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// File is an indexed source file.
type File struct {
	ID          string
	Path        string
	ContentHash string
}

// Chunk is a slice of a file together with its location.
type Chunk struct {
	ID        string
	FileID    string
	Content   string
	StartLine int
	EndLine   int
}

// Match is a single nearest-neighbour result.
type Match struct {
	ChunkID   string  `json:"chunk_id"`
	Path      string  `json:"path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Content   string  `json:"content"`
	Distance  float64 `json:"distance"`
}

// Similarity converts the L2 distance into a score in (0, 1].
func (m Match) Similarity() float64 {
	return 1.0 / (1.0 + m.Distance)
}

// ---- Files ----

func upsertFile(tx *sql.Tx, f File) (string, error) {
	var id string
	err := tx.QueryRow(`
		INSERT INTO files (id, path, content_hash)
		VALUES (lower(hex(randomblob(16))), ?, ?)
		ON CONFLICT(path) DO UPDATE SET
		    content_hash = excluded.content_hash,
		    indexed_at   = CURRENT_TIMESTAMP
		RETURNING id`,
		f.Path, f.ContentHash,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("store: upsert file %s: %w", f.Path, err)
	}
	return id, nil
}

// GetFileByPath returns the file record for the given relative path.
func (s *Store) GetFileByPath(path string) (File, error) {
	var f File
	err := s.conn.QueryRow(
		`SELECT id, path, content_hash FROM files WHERE path = ?`, path,
	).Scan(&f.ID, &f.Path, &f.ContentHash)
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrNotFound
	}
	return f, err
}

// ListFiles returns every indexed file.
func (s *Store) ListFiles() ([]File, error) {
	rows, err := s.conn.Query(`SELECT id, path, content_hash FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("store: list files: %w", err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.Path, &f.ContentHash); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFile removes a file, its chunks and their vectors.
func (s *Store) DeleteFile(fileID string) error {
	if err := s.DeleteChunksByFileID(fileID); err != nil {
		return err
	}
	if _, err := s.conn.Exec(`DELETE FROM files WHERE id = ?`, fileID); err != nil {
		return fmt.Errorf("store: delete file: %w", err)
	}
	return nil
}

// ---- Chunks ----

// ReplaceFile upserts f and swaps its chunks for chunks in one transaction.
// embeddings[i] belongs to chunks[i]. On error the previous file record,
// chunks and vectors are left as they were. Returns the file ID.
func (s *Store) ReplaceFile(f File, chunks []Chunk, embeddings [][]float32) (string, error) {
	if len(chunks) != len(embeddings) {
		return "", fmt.Errorf("store: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	fileID, err := upsertFile(tx, f)
	if err != nil {
		return "", err
	}

	if err := deleteChunks(tx, fileID); err != nil {
		return "", err
	}
	for i, c := range chunks {
		c.FileID = fileID
		if err := s.insertChunk(tx, c, embeddings[i]); err != nil {
			return "", fmt.Errorf("%s:%d: %w", f.Path, c.StartLine, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store: commit file %s: %w", f.Path, err)
	}
	return fileID, nil
}

func (s *Store) insertChunk(tx *sql.Tx, c Chunk, embedding []float32) error {
	if len(embedding) != s.meta.Dimension {
		return fmt.Errorf("%w: vector has %d values, store expects %d",
			ErrDimensionMismatch, len(embedding), s.meta.Dimension)
	}
	blob, err := vec.SerializeFloat32(embedding)
	if err != nil {
		return fmt.Errorf("store: serialize embedding: %w", err)
	}

	var id string
	err = tx.QueryRow(`
		INSERT INTO chunks (id, file_id, content, start_line, end_line)
		VALUES (lower(hex(randomblob(16))), ?, ?, ?, ?)
		RETURNING id`,
		c.FileID, c.Content, c.StartLine, c.EndLine,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("store: insert chunk: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO vec_chunks (id, embedding) VALUES (?, ?)`, id, blob); err != nil {
		return fmt.Errorf("store: insert embedding: %w", err)
	}
	return nil
}

// ListChunksByFileID returns the chunks of a file in line order.
func (s *Store) ListChunksByFileID(fileID string) ([]Chunk, error) {
	rows, err := s.conn.Query(
		`SELECT id, file_id, content, start_line, end_line FROM chunks WHERE file_id = ? ORDER BY start_line`,
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list chunks: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.FileID, &c.Content, &c.StartLine, &c.EndLine); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteChunksByFileID removes every chunk of a file and its vectors.
func (s *Store) DeleteChunksByFileID(fileID string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteChunks(tx, fileID); err != nil {
		return err
	}
	return tx.Commit()
}

// deleteChunks removes a file's chunks and vectors inside tx.
// vec0 tables do not take part in foreign-key cascades.
func deleteChunks(tx *sql.Tx, fileID string) error {
	if _, err := tx.Exec(
		`DELETE FROM vec_chunks WHERE id IN (SELECT id FROM chunks WHERE file_id = ?)`, fileID,
	); err != nil {
		return fmt.Errorf("store: delete embeddings: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("store: delete chunks: %w", err)
	}
	return nil
}

// Counts returns the number of indexed files and chunks.
func (s *Store) Counts() (files, chunks int, err error) {
	if err = s.conn.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&files); err != nil {
		return 0, 0, fmt.Errorf("store: count files: %w", err)
	}
	if err = s.conn.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&chunks); err != nil {
		return 0, 0, fmt.Errorf("store: count chunks: %w", err)
	}
	return files, chunks, nil
}

// ---- Search ----

// Search returns the topK chunks closest to query by L2 distance.
func (s *Store) Search(query []float32, topK int) ([]Match, error) {
	if len(query) == 0 || topK <= 0 {
		return nil, nil
	}
	if len(query) != s.meta.Dimension {
		return nil, fmt.Errorf("%w: query has %d values, store expects %d",
			ErrDimensionMismatch, len(query), s.meta.Dimension)
	}
	blob, err := vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("store: serialize query: %w", err)
	}

	rows, err := s.conn.Query(`
		SELECT v.id, v.distance, c.content, c.start_line, c.end_line, f.path
		FROM (SELECT id, distance FROM vec_chunks WHERE embedding MATCH ? AND k = ?) v
		JOIN chunks c ON c.id = v.id
		JOIN files f ON f.id = c.file_id
		ORDER BY v.distance`,
		blob, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ChunkID, &m.Distance, &m.Content, &m.StartLine, &m.EndLine, &m.Path); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
