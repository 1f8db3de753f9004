package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jask/glossalign/internal/database/repository"
)

type documentItem struct {
	doc repository.Document
}

func (d documentItem) Title() string       { return d.doc.Name }
func (d documentItem) Description() string { return fmt.Sprintf("%d sentences", d.doc.Sentences) }
func (d documentItem) FilterValue() string { return d.doc.Name }

type documentDelegate struct{}

func (d documentDelegate) Height() int  { return 1 }
func (d documentDelegate) Spacing() int { return 0 }
func (d documentDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd {
	return nil
}
func (d documentDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(documentItem)
	if !ok {
		return
	}
	prefix := "  "
	name := entry.doc.Name
	if index == m.Index() {
		prefix = "> "
		name = cursorStyle.Render(name)
	}
	line := fmt.Sprintf("%s%s  %s", prefix, name, referenceStyle.Render(entry.Description()))
	fmt.Fprint(w, padRight(line, m.Width()))
}

type documentsMsg []repository.Document

func newDocumentList() list.Model {
	l := list.New([]list.Item{}, documentDelegate{}, 0, 0)
	l.Title = "Documents"
	l.Styles.Title = titleStyle
	l.Styles.NoItems = lipgloss.NewStyle().Foreground(colorSubtext0)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	return l
}

func (a *App) loadDocuments() tea.Cmd {
	return func() tea.Msg {
		if a.store == nil {
			return statusMsg("no database configured")
		}
		docs, err := a.store.List(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return documentsMsg(docs)
	}
}

func (a *App) openPicker() tea.Cmd {
	if len(a.session.Dirty()) > 0 {
		a.setStatus("save before switching documents (s)")
		return nil
	}
	a.mode = modePicker
	a.resizePicker()
	return a.loadDocuments()
}

func (a *App) resizePicker() {
	w, h := a.width, a.height-4
	if w <= 0 {
		w = 60
	}
	if h <= 0 {
		h = 12
	}
	a.picker.SetSize(w, h)
}

func (a *App) setDocuments(docs []repository.Document) {
	items := make([]list.Item, 0, len(docs))
	for _, d := range docs {
		items = append(items, documentItem{doc: d})
	}
	a.picker.SetItems(items)
	if len(docs) == 0 {
		a.setStatus("no documents: run `glossalign import FILE` first")
	}
}

func (a *App) handlePicker(msg tea.KeyMsg, b *Binding) (tea.Model, tea.Cmd) {
	if b == nil {
		var cmd tea.Cmd
		a.picker, cmd = a.picker.Update(msg)
		return a, cmd
	}
	switch b.Action {
	case actionConfirm:
		item, ok := a.picker.SelectedItem().(documentItem)
		if !ok {
			return a, nil
		}
		a.mode = modeEdit
		a.setStatus("opening...")
		return a, a.loadDocument(item.doc.ID, 0)
	case actionCancel:
		a.mode = modeEdit
		a.setStatus("")
	}
	return a, nil
}

func padRight(s string, width int) string {
	if width <= 0 {
		return s
	}
	s = ansi.Truncate(s, width, "")
	w := ansi.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
