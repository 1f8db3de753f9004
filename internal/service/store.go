package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jask/glossalign/internal/alignment"
	"github.com/jask/glossalign/internal/database"
	"github.com/jask/glossalign/internal/database/repository"
	"github.com/jask/glossalign/internal/usfm"
)

var ErrDocumentNotFound = errors.New("document not found")

// Store moves documents between files and the database.
type Store struct {
	DB        *sql.DB
	Documents *repository.DocumentRepo
	Sentences *repository.SentenceRepo
	Log       *zap.Logger
}

func NewStore(db *sql.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		DB:        db,
		Documents: repository.NewDocumentRepo(db),
		Sentences: repository.NewSentenceRepo(db),
		Log:       log,
	}
}

type ImportResult struct {
	ID        string
	Name      string
	Sentences int
}

// ImportFile reads a saved alignment (.json) or a USFM book and stores it.
// Importing the same path again replaces the stored document.
func (s *Store) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import: %w", err)
	}
	defer f.Close()
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return s.Import(ctx, abs, f)
}

// Import stores the document read from r. The format is chosen by the
// extension of path.
func (s *Store) Import(ctx context.Context, path string, r io.Reader) (ImportResult, error) {
	var doc alignment.Document
	if strings.EqualFold(filepath.Ext(path), ".json") {
		d, err := alignment.ReadJSON(r)
		if err != nil {
			return ImportResult{}, fmt.Errorf("import %s: %w", filepath.Base(path), err)
		}
		doc = d
	} else {
		sentences, err := usfm.Read(r)
		if err != nil {
			return ImportResult{}, fmt.Errorf("import %s: %w", filepath.Base(path), err)
		}
		doc.Sentences = sentences
	}
	if doc.ID == "" {
		doc.ID = DocumentID(path)
	}
	if doc.Name == "" {
		doc.Name = filepath.Base(path)
	}
	if err := s.Documents.Upsert(ctx, repository.Document{ID: doc.ID, Name: doc.Name, SourcePath: path}); err != nil {
		return ImportResult{}, fmt.Errorf("import %s: %w", doc.Name, err)
	}
	if err := s.Sentences.ReplaceAll(ctx, doc.ID, doc.Sentences); err != nil {
		return ImportResult{}, fmt.Errorf("import %s: %w", doc.Name, err)
	}
	s.Log.Info("document imported", zap.String("id", doc.ID), zap.String("name", doc.Name), zap.Int("sentences", len(doc.Sentences)))
	return ImportResult{ID: doc.ID, Name: doc.Name, Sentences: len(doc.Sentences)}, nil
}

// DocumentID derives a stable document id from a source path.
func DocumentID(path string) string {
	key := strings.ToLower(strings.TrimSpace(filepath.Clean(path)))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+key)).String()
}

// Load reads a stored document with all its sentences.
func (s *Store) Load(ctx context.Context, id string) (alignment.Document, error) {
	d, err := s.Documents.Get(ctx, id)
	if err != nil {
		return alignment.Document{}, fmt.Errorf("load %s: %w", id, err)
	}
	if d == nil {
		return alignment.Document{}, fmt.Errorf("load %s: %w", id, ErrDocumentNotFound)
	}
	sentences, err := s.Sentences.List(ctx, id)
	if err != nil {
		return alignment.Document{}, fmt.Errorf("load %s: %w", id, err)
	}
	return alignment.Document{ID: d.ID, Name: d.Name, Sentences: sentences}, nil
}

// Save writes the listed sentences of doc back to the database in one
// transaction: either every listed sentence is stored or none is.
func (s *Store) Save(ctx context.Context, doc alignment.Document, positions []int) error {
	for _, pos := range positions {
		if pos < 0 || pos >= len(doc.Sentences) {
			return fmt.Errorf("save %s: sentence %d out of range", doc.ID, pos)
		}
	}
	if len(positions) == 0 {
		return nil
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, pos := range positions {
			if err := s.Sentences.SaveTx(ctx, tx, doc.ID, pos, doc.Sentences[pos]); err != nil {
				return err
			}
		}
		return s.Documents.TouchTx(ctx, tx, doc.ID)
	}); err != nil {
		return fmt.Errorf("save %s: %w", doc.ID, err)
	}
	s.Log.Info("document saved", zap.String("id", doc.ID), zap.Ints("sentences", positions))
	return nil
}

// SaveSession writes every sentence the session has edited and marks it clean.
func (s *Store) SaveSession(ctx context.Context, sess *Session) error {
	if err := s.Save(ctx, sess.Document(), sess.Dirty()); err != nil {
		return err
	}
	sess.MarkClean()
	return nil
}

// Export writes a stored document as a saved alignment file.
func (s *Store) Export(ctx context.Context, id string, w io.Writer) error {
	doc, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	return alignment.WriteJSON(w, doc)
}

// ExportFile is Export to a newly created file at path.
func (s *Store) ExportFile(ctx context.Context, id, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := s.Export(ctx, id, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Store) List(ctx context.Context) ([]repository.Document, error) {
	return s.Documents.List(ctx)
}

// Delete removes a document and everything stored under it.
func (s *Store) Delete(ctx context.Context, id string) error {
	d, err := s.Documents.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if d == nil {
		return fmt.Errorf("delete %s: %w", id, ErrDocumentNotFound)
	}
	if err := s.Documents.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	s.Log.Info("document deleted", zap.String("id", id))
	return nil
}

// Reset wipes all stored documents, keeping the schema.
func (s *Store) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("store: db not configured")
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, t := range []string{"chunk_sources", "chunks", "sentences", "documents"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(ctx, "VACUUM"); err != nil {
		s.Log.Warn("vacuum after reset", zap.Error(err))
	}
	s.Log.Info("documents reset")
	return nil
}
