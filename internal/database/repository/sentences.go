package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jask/glossalign/internal/alignment"
	"github.com/jask/glossalign/internal/database"
)

// SentenceRepo stores sentences with their chunks and chunk sources.
type SentenceRepo struct {
	db *sql.DB
}

func NewSentenceRepo(db *sql.DB) *SentenceRepo { return &SentenceRepo{db: db} }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SentenceID derives the stable id of the sentence at position in a document.
func SentenceID(documentID string, position int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("sentence:%s:%d", documentID, position))).String()
}

// ReplaceAll swaps every sentence of a document for sentences.
func (r *SentenceRepo) ReplaceAll(ctx context.Context, documentID string, sentences []alignment.Sentence) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sentences WHERE document_id = ?`, documentID); err != nil {
			return fmt.Errorf("clear sentences: %w", err)
		}
		for i, s := range sentences {
			if err := saveSentence(ctx, tx, documentID, i, s); err != nil {
				return err
			}
		}
		return nil
	})
}

// Save writes one sentence, replacing its previous chunks.
func (r *SentenceRepo) Save(ctx context.Context, documentID string, position int, s alignment.Sentence) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return saveSentence(ctx, tx, documentID, position, s)
	})
}

// SaveTx is Save inside a caller's transaction.
func (r *SentenceRepo) SaveTx(ctx context.Context, tx *sql.Tx, documentID string, position int, s alignment.Sentence) error {
	return saveSentence(ctx, tx, documentID, position, s)
}

func saveSentence(ctx context.Context, tx execer, documentID string, position int, s alignment.Sentence) error {
	id := SentenceID(documentID, position)
	if _, err := tx.ExecContext(ctx, `
	INSERT INTO sentences(id, document_id, position, source_string, updated_at)
	VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
	 source_string=excluded.source_string,
	 updated_at=CURRENT_TIMESTAMP;
	`, id, documentID, position, s.SourceString); err != nil {
		return fmt.Errorf("sentence %d: %w", position, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE sentence_id = ?`, id); err != nil {
		return fmt.Errorf("sentence %d clear chunks: %w", position, err)
	}
	for ci, c := range s.Chunks {
		chunkID := uuid.NewString()
		if _, err := tx.ExecContext(ctx, `INSERT INTO chunks(id, sentence_id, position, gloss) VALUES (?, ?, ?, ?)`,
			chunkID, id, ci, c.Gloss); err != nil {
			return fmt.Errorf("sentence %d chunk %d: %w", position, ci, err)
		}
		for si, src := range c.Source {
			if err := insertSource(ctx, tx, chunkID, si, src); err != nil {
				return fmt.Errorf("sentence %d chunk %d source %d: %w", position, ci, si, err)
			}
		}
	}
	return nil
}

func insertSource(ctx context.Context, tx execer, chunkID string, position int, s alignment.Source) error {
	lemma, err := encodeList(s.Lemma)
	if err != nil {
		return err
	}
	morph, err := encodeList(s.Morph)
	if err != nil {
		return err
	}
	strong, err := encodeList(s.Strong)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
	INSERT INTO chunk_sources(chunk_id, position, source_id, content, cv, lemma, morph, strong, occurrence, occurrences)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, chunkID, position, s.ID, s.Content, s.CV, lemma, morph, strong, s.Occurrence, s.Occurrences)
	return err
}

// List returns a document's sentences in order, chunks and sources included.
func (r *SentenceRepo) List(ctx context.Context, documentID string) ([]alignment.Sentence, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT s.position, s.source_string, c.position, c.gloss,
	 cs.source_id, cs.content, cs.cv, cs.lemma, cs.morph, cs.strong, cs.occurrence, cs.occurrences
	FROM sentences s
	LEFT JOIN chunks c ON c.sentence_id = s.id
	LEFT JOIN chunk_sources cs ON cs.chunk_id = c.id
	WHERE s.document_id = ?
	ORDER BY s.position, c.position, cs.position;
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out          []alignment.Sentence
		lastSentence = -1
		lastChunk    = -1
	)
	for rows.Next() {
		var (
			sentencePos                  int
			sourceString                 string
			chunkPos                     sql.NullInt64
			gloss, sourceID, content, cv sql.NullString
			lemma, morph, strong         sql.NullString
			occurrence, occurrences      sql.NullInt64
		)
		if err := rows.Scan(&sentencePos, &sourceString, &chunkPos, &gloss,
			&sourceID, &content, &cv, &lemma, &morph, &strong, &occurrence, &occurrences); err != nil {
			return nil, err
		}
		if sentencePos != lastSentence {
			out = append(out, alignment.Sentence{SourceString: sourceString})
			lastSentence, lastChunk = sentencePos, -1
		}
		if !chunkPos.Valid {
			continue
		}
		s := &out[len(out)-1]
		if int(chunkPos.Int64) != lastChunk {
			s.Chunks = append(s.Chunks, alignment.Chunk{Gloss: gloss.String})
			lastChunk = int(chunkPos.Int64)
		}
		if !sourceID.Valid {
			continue
		}
		src := alignment.Source{
			ID:          sourceID.String,
			Content:     content.String,
			CV:          cv.String,
			Occurrence:  int(occurrence.Int64),
			Occurrences: int(occurrences.Int64),
		}
		if src.Lemma, err = decodeList(lemma.String); err != nil {
			return nil, err
		}
		if src.Morph, err = decodeList(morph.String); err != nil {
			return nil, err
		}
		if src.Strong, err = decodeList(strong.String); err != nil {
			return nil, err
		}
		c := &s.Chunks[len(s.Chunks)-1]
		c.Source = append(c.Source, src)
	}
	return out, rows.Err()
}

func encodeList(items []string) (string, error) {
	if items == nil {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}
