package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/jask/glossalign/internal/alignment"
	"github.com/jask/glossalign/internal/config"
	"github.com/jask/glossalign/internal/partition"
	"github.com/jask/glossalign/internal/service"
)

// App is the alignment editor: one sentence at a time, its chunks as rows.
type App struct {
	ctx     context.Context
	store   *service.Store
	session *service.Session
	keys    *KeyRegistry
	log     *zap.Logger
	ui      config.UIConfig

	help   help.Model
	gloss  textinput.Model
	picker list.Model

	docID     string
	startAt   int
	mode      editMode
	cursor    int // flat token index across groups
	carry     carryState
	status    string
	statusErr bool
	quitArmed bool
	saving    bool
	width     int
	height    int
}

type Deps struct {
	Store   *service.Store
	Session *service.Session
	Keys    *KeyRegistry
	Log     *zap.Logger
	UI      config.UIConfig
}

type editMode int

const (
	modeEdit editMode = iota
	modeCarry
	modeGloss
	modePicker
)

// carryState is a picked-up token and the insertion point it would drop at.
// Within its own group dstPos is the token's final position; in another
// group it is an insertion index in 0..len.
type carryState struct {
	srcGroup int
	srcPos   int
	token    partition.Token
	dstGroup int
	dstPos   int
}

type documentMsg struct {
	doc   alignment.Document
	index int
}

type savedMsg struct {
	rev   int
	count int
}

type errMsg struct{ err error }

type statusMsg string

// New builds the editor. When docID is set the document is loaded on Init
// and opened at sentence index.
func New(ctx context.Context, deps Deps, docID string, index int) *App {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	sess := deps.Session
	if sess == nil {
		sess = service.NewSession(log)
	}
	keys := deps.Keys
	if keys == nil {
		keys = NewKeyRegistry()
	}

	h := help.New()
	h.Styles.ShortKey = helpKeyStyle
	h.Styles.ShortDesc = helpDescStyle
	h.Styles.ShortSeparator = helpDescStyle

	in := textinput.New()
	in.Prompt = "gloss: "
	in.Placeholder = "meaning of this chunk"
	in.CharLimit = 200

	return &App{
		ctx:     ctx,
		store:   deps.Store,
		session: sess,
		keys:    keys,
		log:     log,
		ui:      deps.UI,
		help:    h,
		gloss:   in,
		picker:  newDocumentList(),
		docID:   docID,
		startAt: index,
	}
}

func (a *App) Init() tea.Cmd {
	if a.docID == "" {
		if a.store != nil {
			a.mode = modePicker
			a.resizePicker()
			return a.loadDocuments()
		}
		return func() tea.Msg { return statusMsg("no document open: run `glossalign import FILE` first") }
	}
	return a.loadDocument(a.docID, a.startAt)
}

// Position reports the open document and active sentence, for resuming.
func (a *App) Position() (docID string, index int) {
	i, _ := a.session.Position()
	return a.session.Document().ID, i
}

func (a *App) loadDocument(id string, index int) tea.Cmd {
	return func() tea.Msg {
		if a.store == nil {
			return errMsg{errors.New("no database configured")}
		}
		doc, err := a.store.Load(a.ctx, id)
		if err != nil {
			return errMsg{err}
		}
		return documentMsg{doc: doc, index: index}
	}
}

func (a *App) save() tea.Cmd {
	doc := a.session.Document()
	doc.Sentences = append([]alignment.Sentence(nil), doc.Sentences...)
	dirty := a.session.Dirty()
	rev := a.session.Revision()
	return func() tea.Msg {
		if a.store == nil {
			return errMsg{errors.New("no database configured")}
		}
		if err := a.store.Save(a.ctx, doc, dirty); err != nil {
			return errMsg{err}
		}
		return savedMsg{rev: rev, count: len(dirty)}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.help.Width = msg.Width
		a.resizePicker()
		return a, nil
	case tea.KeyMsg:
		return a.handleKey(msg)
	case documentMsg:
		a.session.Open(msg.doc, msg.index)
		a.docID = msg.doc.ID
		a.mode = modeEdit
		a.cursor = 0
		a.setStatus(fmt.Sprintf("opened %s", msg.doc.Name))
		return a, nil
	case documentsMsg:
		a.setDocuments(msg)
		return a, nil
	case savedMsg:
		a.saving = false
		if a.session.Revision() == msg.rev {
			a.session.MarkClean()
		}
		a.setStatus(fmt.Sprintf("saved %d sentence(s)", msg.count))
		return a, nil
	case statusMsg:
		a.setStatus(string(msg))
		return a, nil
	case errMsg:
		a.saving = false
		a.log.Error("editor command failed", zap.Error(msg.err))
		a.status = msg.err.Error()
		a.statusErr = true
		return a, nil
	}
	if a.mode == modeGloss {
		var cmd tea.Cmd
		a.gloss, cmd = a.gloss.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) setStatus(s string) {
	a.status = s
	a.statusErr = false
}

func (a *App) scope() string {
	switch a.mode {
	case modeCarry:
		return scopeCarry
	case modeGloss:
		return scopeGloss
	case modePicker:
		return scopePicker
	default:
		return scopeEditor
	}
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	b := a.keys.Lookup(msg.String(), a.scope())
	if a.mode == modePicker && (b == nil || b.Action != actionQuit) {
		return a.handlePicker(msg, b)
	}
	if b == nil {
		if a.mode == modeGloss {
			var cmd tea.Cmd
			a.gloss, cmd = a.gloss.Update(msg)
			return a, cmd
		}
		return a, nil
	}
	if b.Action != actionQuit {
		a.quitArmed = false
	}
	if b.Action == actionQuit {
		return a.quit(msg.String())
	}
	switch a.mode {
	case modeCarry:
		return a.handleCarry(b.Action)
	case modeGloss:
		return a.handleGloss(b.Action)
	default:
		return a.handleEdit(b.Action)
	}
}

func (a *App) quit(keyName string) (tea.Model, tea.Cmd) {
	if keyName == "ctrl+c" || len(a.session.Dirty()) == 0 || a.quitArmed {
		return a, tea.Quit
	}
	a.quitArmed = true
	a.setStatus("unsaved changes: press q again to quit, s to save")
	return a, nil
}

func (a *App) handleEdit(action Action) (tea.Model, tea.Cmd) {
	groups := a.session.Groups()
	total := tokenCount(groups)
	g, p := locate(groups, a.cursor)
	switch action {
	case actionLeft:
		if a.cursor > 0 {
			a.cursor--
		}
	case actionRight:
		if a.cursor < total-1 {
			a.cursor++
		}
	case actionPrevGroup:
		if g > 0 {
			a.cursor = flatIndex(groups, g-1, 0)
		}
	case actionNextGroup:
		if g < len(groups)-1 {
			a.cursor = flatIndex(groups, g+1, 0)
		}
	case actionPickUp:
		if total == 0 {
			return a, nil
		}
		a.carry = carryState{srcGroup: g, srcPos: p, token: groups[g][p], dstGroup: g, dstPos: p}
		a.mode = modeCarry
		a.setStatus(fmt.Sprintf("carrying %q", groups[g][p].Text))
	case actionBoundary:
		if total == 0 {
			return a, nil
		}
		switch a.session.Apply(partition.Boundary(g, p)) {
		case partition.ChangeSplit:
			a.setStatus(fmt.Sprintf("split chunk %d", g+1))
		case partition.ChangeMerge:
			a.setStatus(fmt.Sprintf("merged chunk %d into chunk %d", g+1, g))
		default:
			a.setStatus("nothing to split here")
		}
	case actionGloss:
		if total == 0 {
			return a, nil
		}
		a.gloss.SetValue(a.session.Glosses()[g])
		a.gloss.CursorEnd()
		a.mode = modeGloss
		return a, a.gloss.Focus()
	case actionNext:
		if !a.session.Next() {
			a.setStatus("last sentence")
			return a, nil
		}
		a.cursor = 0
		a.setStatus("")
	case actionPrev:
		if !a.session.Prev() {
			a.setStatus("first sentence")
			return a, nil
		}
		a.cursor = 0
		a.setStatus("")
	case actionOpen:
		return a, a.openPicker()
	case actionSave:
		if a.saving {
			return a, nil
		}
		if len(a.session.Dirty()) == 0 {
			a.setStatus("nothing to save")
			return a, nil
		}
		a.saving = true
		a.setStatus("saving...")
		return a, a.save()
	}
	return a, nil
}

func (a *App) handleCarry(action Action) (tea.Model, tea.Cmd) {
	groups := a.session.Groups()
	c := &a.carry
	limit := func(g int) int {
		if g == c.srcGroup {
			return len(groups[g]) - 1
		}
		return len(groups[g])
	}
	switch action {
	case actionLeft:
		if c.dstPos > 0 {
			c.dstPos--
		} else if c.dstGroup > 0 {
			c.dstGroup--
			c.dstPos = limit(c.dstGroup)
		}
	case actionRight:
		if c.dstPos < limit(c.dstGroup) {
			c.dstPos++
		} else if c.dstGroup < len(groups)-1 {
			c.dstGroup++
			c.dstPos = 0
		}
	case actionPrevGroup:
		if c.dstGroup > 0 {
			c.dstGroup--
			c.dstPos = min(c.dstPos, limit(c.dstGroup))
		}
	case actionNextGroup:
		if c.dstGroup < len(groups)-1 {
			c.dstGroup++
			c.dstPos = min(c.dstPos, limit(c.dstGroup))
		}
	case actionCancel:
		a.mode = modeEdit
		a.setStatus("move cancelled")
	case actionDrop:
		var in partition.Intent
		if c.dstGroup == c.srcGroup {
			in = partition.Reorder(c.srcGroup, c.srcPos, c.dstPos)
		} else {
			in = partition.Move(c.srcGroup, c.srcPos, c.dstGroup, c.dstPos)
		}
		ch := a.session.Apply(in)
		a.mode = modeEdit
		after := a.session.Groups()
		if g, p, ok := findToken(after, c.token.ID); ok {
			a.cursor = flatIndex(after, g, p)
		}
		if ch == partition.ChangeNone {
			a.setStatus("token left in place")
		} else {
			a.setStatus(fmt.Sprintf("%s %q", ch, c.token.Text))
		}
	}
	return a, nil
}

func (a *App) handleGloss(action Action) (tea.Model, tea.Cmd) {
	switch action {
	case actionConfirm:
		g, _ := locate(a.session.Groups(), a.cursor)
		if err := a.session.SetGloss(g, strings.TrimSpace(a.gloss.Value())); err != nil {
			a.status, a.statusErr = err.Error(), true
		} else {
			a.setStatus(fmt.Sprintf("gloss set for chunk %d", g+1))
		}
	case actionCancel:
		a.setStatus("")
	}
	a.gloss.Blur()
	a.mode = modeEdit
	return a, nil
}

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n\n")
	if a.mode == modePicker {
		b.WriteString(a.picker.View())
		b.WriteString("\n")
		b.WriteString(a.renderStatus())
		b.WriteString("\n")
		b.WriteString(a.renderFooter())
		return b.String()
	}
	sentence := a.session.Sentence()
	if sentence.SourceString != "" {
		b.WriteString(sourceStyle.Render(sentence.SourceString))
		b.WriteString("\n\n")
	}
	b.WriteString(a.renderGroups())
	b.WriteString("\n")
	b.WriteString(a.renderStatus())
	b.WriteString("\n")
	b.WriteString(a.renderFooter())
	return b.String()
}

// headerText is the position line, e.g. "Sentence 2 of 14 (ch:3, v 16 - 17)".
func (a *App) headerText() string {
	i, n := a.session.Position()
	if n == 0 {
		return "No sentences"
	}
	c, start, end := a.session.Sentence().Reference()
	return fmt.Sprintf("Sentence %d of %d (ch:%s, v %s - %s)", i+1, n, c, start, end)
}

func (a *App) renderHeader() string {
	name := a.session.Document().Name
	if name == "" {
		name = "glossalign"
	}
	if len(a.session.Dirty()) > 0 {
		name += " *"
	}
	content := titleStyle.Render(name) + "  " + referenceStyle.Render(a.headerText())
	if a.width == 0 {
		return headerBarStyle.Render(content)
	}
	return headerBarStyle.Width(a.width).Render(content)
}

func (a *App) renderGroups() string {
	groups := a.session.Groups()
	if len(groups) == 0 {
		return groupBoxStyle.Render(emptyGlossStyle.Render("(empty sentence)"))
	}
	glosses := a.session.Glosses()
	gap := strings.Repeat(" ", max(a.ui.TokenGap, 0))
	cg, _ := locate(groups, a.cursor)

	rows := make([]string, 0, len(groups))
	for gi, g := range groups {
		bar := lipgloss.NewStyle().Foreground(groupColor(gi)).Render("▌")
		row := fmt.Sprintf("%s%2d  %s", bar, gi+1, strings.Join(a.renderTokens(groups, gi, g), gap))
		switch {
		case a.mode == modeGloss && gi == cg:
			row += "    " + a.gloss.View()
		case a.ui.ShowGloss && glosses[gi] != "":
			row += "    " + glossStyle.Render("→ "+glosses[gi])
		case a.ui.ShowGloss:
			row += "    " + emptyGlossStyle.Render("(no gloss)")
		}
		if a.width > 0 {
			row = padRight(row, a.width-4)
		}
		rows = append(rows, row)
	}
	return groupBoxStyle.Render(strings.Join(rows, "\n"))
}

func (a *App) renderTokens(groups []partition.Group, gi int, g partition.Group) []string {
	if a.mode != modeCarry {
		out := make([]string, len(g))
		for i, t := range g {
			if flatIndex(groups, gi, i) == a.cursor {
				out[i] = cursorStyle.Render(t.Text)
			} else {
				out[i] = t.Text
			}
		}
		return out
	}

	c := a.carry
	out := make([]string, 0, len(g)+1)
	preview := caretStyle.Render("▸" + c.token.Text)
	pos := 0
	for i, t := range g {
		if gi == c.srcGroup && i == c.srcPos {
			if gi != c.dstGroup {
				out = append(out, carriedStyle.Render(t.Text))
			}
			continue
		}
		if gi == c.dstGroup && pos == c.dstPos {
			out = append(out, preview)
		}
		out = append(out, t.Text)
		pos++
	}
	if gi == c.dstGroup && pos == c.dstPos {
		out = append(out, preview)
	}
	return out
}

func (a *App) renderStatus() string {
	style := statusBarStyle
	if a.statusErr {
		style = errorStatusStyle
	}
	flat := strings.ReplaceAll(a.status, "\n", " ")
	if a.width == 0 {
		return style.Render(flat)
	}
	return style.Width(a.width).Render(flat)
}

func (a *App) renderFooter() string {
	content := a.help.ShortHelpView(a.keys.HelpBindings(a.scope()))
	if a.width == 0 {
		return footerStyle.Render(content)
	}
	return footerStyle.Width(a.width).Render(content)
}

func tokenCount(groups []partition.Group) int {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	return n
}

// locate maps a flat token index to its group and position. Indices past
// the end land on the last token.
func locate(groups []partition.Group, flat int) (group, pos int) {
	for gi, g := range groups {
		if flat < len(g) {
			return gi, flat
		}
		flat -= len(g)
	}
	if len(groups) == 0 {
		return 0, 0
	}
	last := len(groups) - 1
	return last, len(groups[last]) - 1
}

func flatIndex(groups []partition.Group, group, pos int) int {
	n := 0
	for gi := 0; gi < group && gi < len(groups); gi++ {
		n += len(groups[gi])
	}
	return n + pos
}

func findToken(groups []partition.Group, id string) (group, pos int, ok bool) {
	for gi, g := range groups {
		for pi, t := range g {
			if t.ID == id {
				return gi, pi, true
			}
		}
	}
	return 0, 0, false
}
