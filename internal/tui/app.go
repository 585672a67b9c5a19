package tui

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/verlauf/internal/applog"
	"github.com/lotas/verlauf/internal/config"
	"github.com/lotas/verlauf/internal/history"
	"github.com/lotas/verlauf/internal/organize"
	"github.com/lotas/verlauf/internal/server"
	"github.com/lotas/verlauf/internal/storage"
	"github.com/lotas/verlauf/internal/types"
)

// --- Messages ---

type organizedMsg struct {
	res organize.Result
}

type favoritesMsg struct {
	favs map[string]storage.Favorite
	err  error
}

type wsHistoryMsg struct {
	entries []types.HistoryEntry
}

type wsDisconnectedMsg struct{}

type configChangedMsg struct {
	settings config.Settings
}

type favoriteWrittenMsg struct {
	err error
}

// SourceMode distinguishes live vs offline.
type SourceMode int

const (
	ModeOffline SourceMode = iota
	ModeLive
)

// inputMode says what the text input at the bottom is editing.
type inputMode int

const (
	inputNone inputMode = iota
	inputSearch
	inputTag
)

// --- Model ---

type Model struct {
	cfg *config.Store
	db  *sql.DB
	org *organize.Organizer
	srv *server.Server

	settings config.Settings
	confCh   <-chan config.Settings
	profiles []types.Profile
	profile  types.Profile

	// Last applied organize result. Results from older cycles that
	// finish late are discarded.
	res       organize.Result
	applied   uint64
	favorites map[string]storage.Favorite
	sortMode  types.SortMode
	search    string

	// Live mode keeps the last pushed snapshot so sort/config changes
	// can re-partition without waiting for the extension.
	liveEntries []types.HistoryEntry

	groups     GroupList
	entries    EntryList
	picker     SourcePicker
	showPicker bool
	focusRight bool

	input     textinput.Model
	inputMode inputMode

	mode      SourceMode
	connected bool
	loading   bool
	width     int
	height    int
}

func NewModel(cfg *config.Store, db *sql.DB, org *organize.Organizer, srv *server.Server, profiles []types.Profile, liveMode bool) Model {
	ti := textinput.New()
	ti.CharLimit = 200
	ti.Width = 40

	m := Model{
		cfg:       cfg,
		db:        db,
		org:       org,
		srv:       srv,
		settings:  cfg.Settings(),
		confCh:    cfg.Subscribe(),
		profiles:  profiles,
		favorites: make(map[string]storage.Favorite),
		input:     ti,
	}
	if liveMode {
		m.mode = ModeLive
		m.loading = true
	} else if len(profiles) == 1 {
		m.mode = ModeOffline
		m.profile = profiles[0]
		m.loading = true
	} else {
		m.showPicker = true
		m.picker = NewSourcePicker(profiles)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		loadFavorites(m.db),
		listenConfig(m.confCh),
	}
	if m.mode == ModeLive {
		cmds = append(cmds, m.startLiveMode())
	} else if m.loading {
		cmds = append(cmds, m.runOrganize(history.FirefoxSource{Profile: m.profile}))
	}
	return tea.Batch(cmds...)
}

// --- Commands ---

func (m Model) runOrganize(src organize.Source) tea.Cmd {
	org := m.org
	defs := m.settings.WebsiteGroups
	mode := m.sortMode
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return organizedMsg{res: org.Organize(ctx, src, defs, mode)}
	}
}

// currentSource returns the source for a refresh in the active mode, or
// nil if live mode has not received a snapshot yet.
func (m Model) currentSource() organize.Source {
	if m.mode == ModeLive {
		if m.liveEntries == nil {
			return nil
		}
		return history.StaticSource(m.liveEntries)
	}
	return history.FirefoxSource{Profile: m.profile}
}

func loadFavorites(db *sql.DB) tea.Cmd {
	return func() tea.Msg {
		if db == nil {
			return favoritesMsg{favs: map[string]storage.Favorite{}}
		}
		favs, err := storage.ListFavorites(db)
		return favoritesMsg{favs: favs, err: err}
	}
}

func (m Model) startLiveMode() tea.Cmd {
	return tea.Batch(
		listenWebSocket(m.srv),
		startWSServer(m.srv),
	)
}

func startWSServer(srv *server.Server) tea.Cmd {
	return func() tea.Msg {
		srv.ListenAndServe(context.Background())
		return wsDisconnectedMsg{}
	}
}

func listenWebSocket(srv *server.Server) tea.Cmd {
	return func() tea.Msg {
		for {
			msg, ok := <-srv.Messages()
			if !ok {
				return wsDisconnectedMsg{}
			}
			if msg.Type != "history" {
				continue // hello / command responses need no UI update
			}
			entries, err := server.ParseHistory(msg)
			if err != nil {
				applog.Error("ws.history", err)
				continue
			}
			return wsHistoryMsg{entries: entries}
		}
	}
}

func listenConfig(ch <-chan config.Settings) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return configChangedMsg{settings: s}
	}
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if m.inputMode != inputNone {
			return m.updateInput(msg)
		}
		if m.showPicker {
			return m.updatePicker(msg)
		}
		return m.updateKeys(msg)

	case organizedMsg:
		// A superseded in-flight cycle may complete after a newer one.
		if msg.res.Cycle < m.applied {
			return m, nil
		}
		m.applied = msg.res.Cycle
		m.loading = false
		m.res = msg.res
		m.res.Stats.Favorites = len(m.favorites)
		m.groups.SetGroups(m.res.Groups)
		m.syncEntries()
		return m, nil

	case favoritesMsg:
		if msg.err != nil {
			applog.Error("favorites.load", msg.err)
			return m, nil
		}
		m.favorites = msg.favs
		m.res.Stats.Favorites = len(m.favorites)
		m.entries.Favorites = m.favorites
		return m, nil

	case favoriteWrittenMsg:
		if msg.err != nil {
			applog.Error("favorites.write", msg.err)
			return m, nil
		}
		return m, loadFavorites(m.db)

	case wsHistoryMsg:
		m.connected = true
		m.loading = false
		m.liveEntries = msg.entries
		return m, tea.Batch(
			m.runOrganize(history.StaticSource(msg.entries)),
			listenWebSocket(m.srv),
		)

	case wsDisconnectedMsg:
		m.connected = false
		if m.mode == ModeLive {
			return m, listenWebSocket(m.srv)
		}
		return m, nil

	case configChangedMsg:
		m.settings = msg.settings
		m.layout()
		cmds := []tea.Cmd{listenConfig(m.confCh)}
		if src := m.currentSource(); src != nil {
			m.loading = true
			cmds = append(cmds, m.runOrganize(src))
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		value := m.input.Value()
		mode := m.inputMode
		m.inputMode = inputNone
		m.input.Blur()
		if mode == inputTag {
			entry := m.entries.Selected()
			if entry == nil {
				return m, nil
			}
			return m, writeTag(m.db, entry.URL, value)
		}
		m.search = value
		m.syncEntries()
		return m, nil
	case "esc":
		if m.inputMode == inputSearch {
			m.search = ""
			m.syncEntries()
		}
		m.inputMode = inputNone
		m.input.Blur()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.inputMode == inputSearch {
		// Filter as the user types.
		m.search = m.input.Value()
		m.syncEntries()
	}
	return m, cmd
}

func writeTag(db *sql.DB, url, tag string) tea.Cmd {
	return func() tea.Msg {
		var err error
		if tag == "" {
			err = storage.ClearTag(db, url)
		} else {
			err = storage.SetTag(db, url, tag)
		}
		return favoriteWrittenMsg{err: err}
	}
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.picker.MoveUp()
	case "down", "j":
		m.picker.MoveDown()
	case "enter":
		return m.pickSource(m.picker.Selected())
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		n := int(msg.String()[0] - '0')
		if m.picker.SelectByNumber(n) {
			return m.pickSource(m.picker.Selected())
		}
	case "esc":
		if m.applied > 0 {
			m.showPicker = false
		}
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) pickSource(src Source) (tea.Model, tea.Cmd) {
	m.showPicker = false
	m.loading = true
	if src.IsLive {
		m.mode = ModeLive
		return m, m.startLiveMode()
	}
	m.mode = ModeOffline
	m.profile = *src.Profile
	return m, m.runOrganize(history.FirefoxSource{Profile: m.profile})
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		m.focusRight = !m.focusRight
		m.groups.Focused = !m.focusRight
		m.entries.Focused = m.focusRight

	case "up", "k":
		if m.focusRight {
			m.entries.MoveUp()
		} else {
			m.groups.MoveUp()
			m.syncEntries()
		}

	case "down", "j":
		if m.focusRight {
			m.entries.MoveDown()
		} else {
			m.groups.MoveDown()
			m.syncEntries()
		}

	case "/":
		m.inputMode = inputSearch
		m.input.Prompt = "/ "
		m.input.Placeholder = "search title or url"
		m.input.SetValue(m.search)
		m.input.Focus()
		return m, textinput.Blink

	case "s":
		if m.loading {
			return m, nil // mode and list must flip together
		}
		if m.sortMode == types.SortByFrequency {
			m.sortMode = types.SortByTime
		} else {
			m.sortMode = types.SortByFrequency
		}
		if src := m.currentSource(); src != nil {
			m.loading = true
			return m, m.runOrganize(src)
		}

	case "f":
		entry := m.entries.Selected()
		if entry == nil {
			return m, nil
		}
		url := entry.URL
		_, starred := m.favorites[url]
		db := m.db
		return m, func() tea.Msg {
			var err error
			if starred {
				err = storage.RemoveFavorite(db, url)
			} else {
				err = storage.AddFavorite(db, url)
			}
			return favoriteWrittenMsg{err: err}
		}

	case "t":
		entry := m.entries.Selected()
		if entry == nil {
			return m, nil
		}
		m.inputMode = inputTag
		m.input.Prompt = "tag: "
		m.input.Placeholder = "custom name (empty clears)"
		m.input.SetValue(m.favorites[entry.URL].Tag)
		m.input.Focus()
		return m, textinput.Blink

	case "d":
		s := m.settings
		s.DockSettings.Enabled = !s.DockSettings.Enabled
		if err := m.cfg.Save(s); err != nil {
			applog.Error("config.save", err)
			return m, nil
		}
		m.settings = m.cfg.Settings()
		m.layout()

	case "r":
		if m.loading {
			return m, nil // a cycle is already in flight
		}
		if m.mode == ModeLive {
			if !m.connected {
				return m, nil
			}
			return m, func() tea.Msg {
				m.srv.Send(server.OutgoingMsg{ID: "refresh-1", Action: "refresh"})
				return nil
			}
		}
		m.loading = true
		return m, m.runOrganize(history.FirefoxSource{Profile: m.profile})

	case "esc":
		if m.search != "" {
			m.search = ""
			m.syncEntries()
		}

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		m.picker = NewSourcePicker(m.profiles)
		n := int(msg.String()[0] - '0')
		if m.picker.SelectByNumber(n) {
			return m.pickSource(m.picker.Selected())
		}
	}
	return m, nil
}

// syncEntries refreshes the right panel from the selected group, the
// search term, and the latest frequency/favorite data.
func (m *Model) syncEntries() {
	m.entries.Freq = m.res.Frequencies
	m.entries.Thresholds = m.org.Thresholds()
	m.entries.Favorites = m.favorites

	g := m.groups.Selected()
	if g == nil {
		m.entries.SetEntries(nil)
		return
	}
	filtered := organize.Filter(*g, m.search)
	m.entries.SetEntries(filtered.Items)
}

func (m *Model) layout() {
	paneHeight := m.height - 5 // top bar, bottom bar, borders
	if paneHeight < 3 {
		paneHeight = 3
	}

	dockW := 0
	if m.settings.DockSettings.Enabled {
		dockW = dockCols(m.settings.DockSettings, m.width) + 2 // border
	}

	groupsW := (m.width - dockW) * 30 / 100
	if groupsW < 18 {
		groupsW = 18
	}
	entriesW := m.width - dockW - groupsW - 6
	if entriesW < 20 {
		entriesW = 20
	}

	m.groups.Width = groupsW
	m.groups.Height = paneHeight
	m.entries.Width = entriesW
	m.entries.Height = paneHeight
	m.picker.Width = m.width
	m.picker.Height = m.height
	m.groups.Focused = !m.focusRight
	m.entries.Focused = m.focusRight
}

// --- View ---

func (m Model) View() string {
	if m.loading && m.applied == 0 {
		if m.mode == ModeLive {
			return fmt.Sprintf("\n  Waiting for extension connection on :%d...\n", m.srv.Port())
		}
		return "\n  Loading history...\n"
	}

	if m.showPicker {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.picker.View())
	}

	// Top bar
	topBarStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	var sourceStr string
	if m.mode == ModeLive {
		if m.connected {
			sourceStr = "Live ● connected"
		} else {
			sourceStr = "Live ○ waiting..."
		}
	} else {
		sourceStr = fmt.Sprintf("Profile: %s", m.profile.Name)
	}
	statsStr := fmt.Sprintf("%d entries · %d groups · %d top", m.res.Stats.TotalEntries, m.res.Stats.TotalGroups, m.res.Stats.TopVisited)
	if m.res.Stats.Favorites > 0 {
		statsStr += fmt.Sprintf(" · %d ★", m.res.Stats.Favorites)
	}
	if m.loading {
		statsStr += " · refreshing..."
	}
	topBar := topBarStyle.Render(sourceStr + "  " + statsStr)

	if m.res.Unavailable {
		banner := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Padding(0, 1).
			Render("history unavailable — press r to retry or 1-9 to switch source")
		topBar = lipgloss.JoinVertical(lipgloss.Left, topBar, banner)
	}

	// Panes
	focusBorder := lipgloss.Color("62")
	blurBorder := lipgloss.Color("240")
	groupsColor, entriesColor := focusBorder, blurBorder
	if m.focusRight {
		groupsColor, entriesColor = blurBorder, focusBorder
	}

	left := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(groupsColor).
		Width(m.groups.Width).
		Height(m.groups.Height).
		Render(m.groups.View())

	right := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(entriesColor).
		Width(m.entries.Width).
		Height(m.entries.Height).
		Render(m.entries.View())

	panels := []string{left, right}
	if m.settings.DockSettings.Enabled {
		dw := dockCols(m.settings.DockSettings, m.width)
		dock := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(blurBorder).
			Width(dw).
			Height(m.groups.Height).
			Render(renderDock(m.res.Frequencies, m.favorites, dw, m.groups.Height))
		if m.settings.DockSettings.Side == "left" {
			panels = append([]string{dock}, panels...)
		} else {
			panels = append(panels, dock)
		}
	}
	panes := lipgloss.JoinHorizontal(lipgloss.Top, panels...)

	// Bottom bar: active text input, otherwise key hints.
	bottomBarStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	var bottomBar string
	if m.inputMode != inputNone {
		bottomBar = lipgloss.NewStyle().Padding(0, 1).Render(m.input.View())
	} else {
		hints := "tab panel · ↑↓/jk navigate · / search · s sort · f ★ · t tag · d dock · r refresh · 1-9 source · q quit"
		status := fmt.Sprintf("  [sort: %s]", m.sortMode)
		if m.search != "" {
			status += fmt.Sprintf(" [search: %s]", m.search)
		}
		bottomBar = bottomBarStyle.Render(hints + status)
	}

	return lipgloss.JoinVertical(lipgloss.Left, topBar, panes, bottomBar)
}
