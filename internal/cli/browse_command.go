package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/roman628/tiktok-archiver/internal/model"
	"github.com/roman628/tiktok-archiver/internal/store"
)

type browseMode int

const (
	browseModeList browseMode = iota
	browseModeSearch
	browseModeDeleteConfirm
)

type browseFilter int

const (
	browseFilterAll browseFilter = iota
	browseFilterNoTranscription
	browseFilterNoComments
)

func (f browseFilter) label() string {
	switch f {
	case browseFilterNoTranscription:
		return "missing transcription"
	case browseFilterNoComments:
		return "missing comments"
	default:
		return "all"
	}
}

type browseModel struct {
	storePath string
	scorer    model.Scorer

	records []model.Record
	visible []int // indexes into records after filter/search
	cursor  int
	offset  int
	width   int
	height  int

	mode   browseMode
	filter browseFilter
	search textinput.Model

	statusMessage string
	fatalErr      error
}

type browseLoadedMsg struct {
	records  []model.Record
	repaired bool
	err      error
}

type browseDeleteMsg struct {
	message string
	err     error
}

var (
	browseTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	browseMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	browseErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	browsePanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	browseSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

func runBrowse(args []string) error {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	storePath := fs.String("store", defaultStorePath, "store file path")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("browse requires an interactive terminal (TTY)")
	}

	search := textinput.New()
	search.Placeholder = "url, title or uploader"
	search.CharLimit = 120

	m := browseModel{
		storePath: strings.TrimSpace(*storePath),
		scorer:    model.DefaultScorer(),
		search:    search,
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("browse requires an interactive terminal (TTY)")
		}
		return err
	}
	if fm, ok := finalModel.(browseModel); ok {
		return fm.fatalErr
	}
	return nil
}

func loadStoreCmd(storePath string) tea.Cmd {
	return func() tea.Msg {
		loaded, err := store.Load(storePath)
		if err != nil {
			return browseLoadedMsg{err: err}
		}
		store.SortByURL(loaded.Records)
		return browseLoadedMsg{records: loaded.Records, repaired: loaded.Repaired}
	}
}

// deleteRecordCmd removes the record for url under the store lock. The
// store is re-read while the lock is held so records appended since the
// browser loaded its snapshot survive the rewrite.
func deleteRecordCmd(storePath, url string) tea.Cmd {
	return func() tea.Msg {
		lock, err := store.AcquireLock(storePath)
		if err != nil {
			return browseDeleteMsg{err: fmt.Errorf("store is busy, try again: %w", err)}
		}
		defer lock.Release()

		loaded, err := store.Load(storePath)
		if err != nil {
			return browseDeleteMsg{err: err}
		}
		kept := make([]model.Record, 0, len(loaded.Records))
		removed := 0
		for _, rec := range loaded.Records {
			if rec.URL == url {
				removed++
				continue
			}
			kept = append(kept, rec)
		}
		if removed == 0 {
			return browseDeleteMsg{message: "record already gone"}
		}
		if _, err := store.CreateBackup(storePath, "backup"); err != nil {
			return browseDeleteMsg{err: err}
		}
		if err := store.WriteJSON(storePath, kept); err != nil {
			return browseDeleteMsg{err: err}
		}
		return browseDeleteMsg{message: "record deleted (backup written)"}
	}
}

func (m browseModel) Init() tea.Cmd {
	return loadStoreCmd(m.storePath)
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case browseLoadedMsg:
		if msg.err != nil {
			m.fatalErr = msg.err
			return m, tea.Quit
		}
		m.records = msg.records
		if msg.repaired {
			m.statusMessage = "store required repair to read; run the repair command to persist"
		}
		m.refreshVisible()
		return m, nil
	case browseDeleteMsg:
		m.mode = browseModeList
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
			return m, nil
		}
		m.statusMessage = msg.message
		return m, loadStoreCmd(m.storePath)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch m.mode {
	case browseModeSearch:
		return m.updateSearch(keyMsg)
	case browseModeDeleteConfirm:
		return m.updateDeleteConfirm(keyMsg)
	default:
		return m.updateList(keyMsg)
	}
}

func (m browseModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case "pgup":
		m.cursor -= m.listHeight()
		if m.cursor < 0 {
			m.cursor = 0
		}
	case "pgdown":
		m.cursor += m.listHeight()
		if m.cursor > len(m.visible)-1 {
			m.cursor = len(m.visible) - 1
		}
	case "f":
		m.filter = (m.filter + 1) % 3
		m.refreshVisible()
	case "/":
		m.mode = browseModeSearch
		m.search.Focus()
		return m, textinput.Blink
	case "r":
		return m, loadStoreCmd(m.storePath)
	case "d":
		if len(m.visible) == 0 {
			m.statusMessage = "nothing selected"
			return m, nil
		}
		m.mode = browseModeDeleteConfirm
	}
	m.clampScroll()
	return m, nil
}

func (m browseModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.search.SetValue("")
		m.search.Blur()
		m.mode = browseModeList
		m.refreshVisible()
		return m, nil
	case "enter":
		m.search.Blur()
		m.mode = browseModeList
		m.refreshVisible()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.refreshVisible()
	return m, cmd
}

func (m browseModel) updateDeleteConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch strings.ToLower(msg.String()) {
	case "y":
		if rec, ok := m.selected(); ok {
			if rec.URL == "" {
				m.mode = browseModeList
				m.statusMessage = "cannot delete a record without a url"
				return m, nil
			}
			return m, deleteRecordCmd(m.storePath, rec.URL)
		}
		m.mode = browseModeList
		return m, nil
	case "n", "esc", "ctrl+c", "q":
		m.mode = browseModeList
		m.statusMessage = "delete cancelled"
		return m, nil
	}
	return m, nil
}

func (m *browseModel) refreshVisible() {
	query := strings.ToLower(strings.TrimSpace(m.search.Value()))
	m.visible = m.visible[:0]
	for i, rec := range m.records {
		switch m.filter {
		case browseFilterNoTranscription:
			if rec.HasTranscription() {
				continue
			}
		case browseFilterNoComments:
			if rec.CommentsExtracted && len(rec.TopComments) > 0 {
				continue
			}
		}
		if query != "" && !recordMatches(rec, query) {
			continue
		}
		m.visible = append(m.visible, i)
	}
	if m.cursor > len(m.visible)-1 {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.clampScroll()
}

func recordMatches(rec model.Record, query string) bool {
	return strings.Contains(strings.ToLower(rec.URL), query) ||
		strings.Contains(strings.ToLower(rec.Title), query) ||
		strings.Contains(strings.ToLower(rec.Uploader), query)
}

func (m browseModel) selected() (model.Record, bool) {
	if len(m.visible) == 0 || m.cursor >= len(m.visible) {
		return model.Record{}, false
	}
	return m.records[m.visible[m.cursor]], true
}

func (m browseModel) listHeight() int {
	h := m.height - 8
	if h < 4 {
		h = 4
	}
	return h
}

func (m *browseModel) clampScroll() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m browseModel) View() string {
	var b strings.Builder
	title := fmt.Sprintf("tiktok-archiver browse — %s", m.storePath)
	b.WriteString(browseTitleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(browseMutedStyle.Render(fmt.Sprintf("%d records shown (filter: %s)", len(m.visible), m.filter.label())))
	b.WriteString("\n\n")

	if m.mode == browseModeSearch {
		b.WriteString("search: " + m.search.View() + "\n\n")
	} else if q := strings.TrimSpace(m.search.Value()); q != "" {
		b.WriteString(browseMutedStyle.Render("search: "+q) + "\n\n")
	}

	h := m.listHeight()
	end := m.offset + h
	if end > len(m.visible) {
		end = len(m.visible)
	}
	if len(m.visible) == 0 {
		b.WriteString(browseMutedStyle.Render("  (no records match)") + "\n")
	}
	for row := m.offset; row < end; row++ {
		rec := m.records[m.visible[row]]
		line := fmt.Sprintf("%3d  %s", m.scorer.Score(rec), displayLabel(rec))
		if row == m.cursor {
			line = browseSelStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	if rec, ok := m.selected(); ok {
		b.WriteString(browsePanelStyle.Render(m.detailView(rec)))
		b.WriteString("\n")
	}

	switch m.mode {
	case browseModeDeleteConfirm:
		if rec, ok := m.selected(); ok {
			b.WriteString(browseErrorStyle.Render(fmt.Sprintf("delete record for %s? (y/n)", rec.URL)))
			b.WriteString("\n")
		}
	default:
		b.WriteString(browseMutedStyle.Render("j/k move · f filter · / search · d delete · r reload · q quit"))
		b.WriteString("\n")
	}
	if m.statusMessage != "" {
		b.WriteString(browseMutedStyle.Render(m.statusMessage))
		b.WriteString("\n")
	}
	return b.String()
}

func (m browseModel) detailView(rec model.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "url: %s\n", rec.URL)
	if rec.Title != "" {
		fmt.Fprintf(&b, "title: %s\n", truncateLine(rec.Title, 80))
	}
	if rec.Uploader != "" {
		fmt.Fprintf(&b, "uploader: %s  upload_date: %s\n", rec.Uploader, rec.UploadDate)
	}
	fmt.Fprintf(&b, "views: %s  likes: %s  comments: %s\n",
		formatCount(rec.ViewCount), formatCount(rec.LikeCount), formatCount(rec.CommentCount))
	fmt.Fprintf(&b, "comments_extracted: %v (%d kept)\n", rec.CommentsExtracted, len(rec.TopComments))
	if rec.HasTranscription() {
		fmt.Fprintf(&b, "transcription (%s): %s\n", rec.Transcription.Source, truncateLine(rec.Transcription.Text, 100))
	} else {
		b.WriteString("transcription: none\n")
	}
	if extras := rec.ExtraKeys(); len(extras) > 0 {
		fmt.Fprintf(&b, "extra fields: %s\n", strings.Join(extras, ", "))
	}
	fmt.Fprintf(&b, "completeness score: %d", m.scorer.Score(rec))
	return b.String()
}

func displayLabel(rec model.Record) string {
	if rec.Title != "" {
		return truncateLine(rec.Title, 60)
	}
	if rec.URL != "" {
		return truncateLine(rec.URL, 60)
	}
	return "(unkeyed record)"
}

func truncateLine(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func formatCount(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
