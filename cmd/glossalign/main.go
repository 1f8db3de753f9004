package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jask/glossalign/internal/config"
	"github.com/jask/glossalign/internal/database"
	"github.com/jask/glossalign/internal/logging"
	"github.com/jask/glossalign/internal/prefs"
	"github.com/jask/glossalign/internal/service"
	"github.com/jask/glossalign/internal/tui"
)

// env is what every subcommand shares once the config is read.
type env struct {
	cfg   config.Config
	log   *zap.Logger
	db    *sql.DB
	store *service.Store
}

func main() {
	e := &env{}
	err := newRootCmd(e).Execute()
	e.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (e *env) open() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	e.cfg = cfg

	if e.log, err = logging.New(cfg.Log); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir db dir: %w", err)
	}
	if err := database.RunMigrations(cfg.Database.Path); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if e.db, err = database.Open(cfg.Database.Path); err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	e.store = service.NewStore(e.db, e.log)
	return nil
}

func (e *env) close() {
	if e.db != nil {
		_ = e.db.Close()
		e.db = nil
	}
	if e.log != nil {
		_ = e.log.Sync()
	}
}

func newRootCmd(e *env) *cobra.Command {
	var (
		docID    string
		sentence int
	)
	root := &cobra.Command{
		Use:   "glossalign",
		Short: "Group sentence tokens into glossed chunks",
		Long: `glossalign is a terminal editor for chunking source sentences and
glossing each chunk.

Run without arguments to reopen the document and sentence you last edited.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.open()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			index := -1
			if cmd.Flags().Changed("sentence") {
				index = sentence - 1
			}
			return e.runEditor(cmd.Context(), docID, index)
		},
	}
	root.Flags().StringVar(&docID, "doc", "", "document id to open (default: last edited)")
	root.Flags().IntVar(&sentence, "sentence", 1, "sentence number to open")

	root.AddCommand(
		newImportCmd(e),
		newExportCmd(e),
		newListCmd(e),
		newDeleteCmd(e),
		newResetCmd(e),
		newReplayCmd(e),
	)
	return root
}

// runEditor resolves which document to open and runs the editor until quit.
// A negative index resumes at the remembered sentence.
func (e *env) runEditor(ctx context.Context, docID string, index int) error {
	keys := tui.NewKeyRegistry()
	if err := keys.ApplyOverrides(e.cfg.Keys); err != nil {
		return err
	}

	last, err := prefs.LoadSession()
	if err != nil {
		e.log.Warn("session prefs unreadable", zap.Error(err))
	}
	if docID == "" {
		docID = last.DocumentID
		if index < 0 {
			index = last.Sentence
		}
	}
	if docID == "" {
		docs, err := e.store.List(ctx)
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			docID = docs[0].ID
		}
	}
	if index < 0 {
		index = 0
	}

	app := tui.New(ctx, tui.Deps{
		Store:   e.store,
		Session: service.NewSession(e.log),
		Keys:    keys,
		Log:     e.log,
		UI:      e.cfg.UI,
	}, docID, index)
	e.log.Info("editor start", zap.String("document", docID), zap.Int("sentence", index))

	final, err := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	if a, ok := final.(*tui.App); ok {
		if id, i := a.Position(); id != "" {
			if err := prefs.SaveSession(prefs.Session{DocumentID: id, Sentence: i}); err != nil {
				e.log.Warn("save session prefs", zap.Error(err))
			}
		}
	}
	return nil
}

func newImportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import a USFM book or a saved alignment (.json)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := e.store.ImportFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d sentences\n", res.ID, res.Name, res.Sentences)
			return nil
		},
	}
}

func newExportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "export ID FILE",
		Short: "Write a document as a saved alignment; FILE - writes to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[1] == "-" {
				return e.store.Export(cmd.Context(), args[0], cmd.OutOrStdout())
			}
			if err := e.store.ExportFile(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			e.log.Info("document exported", zap.String("id", args[0]), zap.String("path", args[1]))
			return nil
		},
	}
}

func newListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List imported documents, most recently edited first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := e.store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "no documents")
				return nil
			}
			for _, d := range docs {
				fmt.Fprintf(out, "%-36s  %-24s  %5d  %s\n", d.ID, d.Name, d.Sentences, d.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.store.Delete(cmd.Context(), args[0])
		},
	}
}

func newResetCmd(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset deletes all documents; pass --yes to confirm")
			}
			return e.store.Reset(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all documents")
	return cmd
}

func newReplayCmd(e *env) *cobra.Command {
	var (
		sentence int
		save     bool
	)
	cmd := &cobra.Command{
		Use:   "replay ID FILE",
		Short: "Apply JSON-lines gesture intents to one sentence and print the chunks",
		Long: `Reads one intent per line, for example

  {"kind":"boundary","groupIndex":0,"boundaryPosition":2}
  {"kind":"move","sourceGroup":1,"sourcePos":0,"destGroup":0,"destPos":0}
  {"kind":"reorder","groupIndex":0,"from":0,"to":1}

and applies them to a fresh single-chunk view of the sentence. FILE - reads stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := e.store.Load(ctx, args[0])
			if err != nil {
				return err
			}
			if sentence < 1 || sentence > len(doc.Sentences) {
				return fmt.Errorf("sentence %d out of range 1..%d", sentence, len(doc.Sentences))
			}

			var r io.Reader = cmd.InOrStdin()
			if args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			intents, err := service.ReadIntents(r)
			if err != nil {
				return fmt.Errorf("read intents: %w", err)
			}

			sess := service.NewSession(e.log)
			sess.Open(doc, sentence-1)
			out := cmd.OutOrStdout()
			for i, step := range service.Replay(sess, intents) {
				result := string(step.Change)
				if result == "" {
					result = "rejected"
				}
				fmt.Fprintf(out, "#%d %s: %s\n", i+1, step.Intent.Kind, result)
			}
			fmt.Fprint(out, service.FormatGroups(sess.Groups(), sess.Glosses()))

			if save {
				return e.store.SaveSession(ctx, sess)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&sentence, "sentence", 1, "sentence number to replay against")
	cmd.Flags().BoolVar(&save, "save", false, "store the resulting chunks")
	return cmd
}
