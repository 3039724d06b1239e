package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunedeck/internal/models"
	"github.com/desertthunder/tunedeck/internal/playback"
	"github.com/desertthunder/tunedeck/internal/services"
	"github.com/desertthunder/tunedeck/internal/shared"
)

const (
	seekStepMs   = 10_000
	volumeStep   = 0.1
	tickInterval = time.Second
	// lines used by the bar, help and padding below a list
	chromeHeight = 9
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistsView ViewState = iota
	TracksView
	SearchView
)

// Library is the read side of the proxied Web API the player browses.
type Library interface {
	Playlists(ctx context.Context) ([]models.Playlist, error)
	PlaylistTracks(ctx context.Context, id string) ([]models.Track, error)
	SearchTracks(ctx context.Context, query string) ([]models.Track, error)
}

// History records plays. It is optional.
type History interface {
	Record(ctx context.Context, play *models.Play) error
}

// Options configures a [Model].
type Options struct {
	Library     Library
	Tokens      services.TokenProvider
	Controller  *playback.Controller
	Device      playback.Device
	History     History
	Logger      *log.Logger
	Now         func() time.Time
	SearchDelay time.Duration
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	library    Library
	tokens     services.TokenProvider
	controller *playback.Controller
	history    History
	logger     *log.Logger
	now        func() time.Time

	events      chan playback.Event
	closed      chan struct{}
	closeOnce   sync.Once
	unsubscribe func()

	width        int
	height       int
	playlistList list.Model
	trackList    list.Model
	searchList   list.Model
	playlist     models.Playlist
	tracks       []models.Track
	results      []models.Track
	input        textinput.Model
	debounce     *debouncer
	searching    bool

	spinner  spinner.Model
	progress progress.Model
	help     help.Model
	keys     keyMap

	tickGen     uint64
	ticking     bool
	lastTrackID string

	notice string
	err    error
}

// NewModel creates a new TUI model and subscribes to the device's events.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SearchDelay <= 0 {
		opts.SearchDelay = SearchDelay
	}

	input := textinput.New()
	input.Placeholder = "Search tracks"
	input.Prompt = "/ "
	input.CharLimit = 120

	m := &Model{
		ctx:          ctx,
		view:         PlaylistsView,
		library:      opts.Library,
		tokens:       opts.Tokens,
		controller:   opts.Controller,
		history:      opts.History,
		logger:       shared.WithLogger(opts.Logger, "component", "ui"),
		now:          opts.Now,
		events:       make(chan playback.Event, 64),
		closed:       make(chan struct{}),
		playlistList: newList("Playlists", nil, 0, 0),
		trackList:    newList("Tracks", nil, 0, 0),
		searchList:   newList("Search", nil, 0, 0),
		input:        input,
		debounce:     newDebouncer(opts.SearchDelay),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		progress:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(40)),
		help:         help.New(),
		keys:         newKeyMap(),
	}

	events, closed := m.events, m.closed
	m.unsubscribe = opts.Device.Subscribe(func(ev playback.Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		case <-closed:
		}
	})

	return m
}

// Close stops relaying device events. A publisher blocked on a full relay is released.
func (m *Model) Close() {
	m.closeOnce.Do(func() { close(m.closed) })
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Init fetches a token and the library, and starts listening for device events.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchToken(), m.fetchPlaylists(), m.waitForEvent(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listHeight := max(msg.Height-chromeHeight, 3)
		m.playlistList.SetSize(msg.Width-4, listHeight)
		m.trackList.SetSize(msg.Width-4, listHeight)
		m.searchList.SetSize(msg.Width-4, listHeight-1)
		m.progress.Width = max(min(msg.Width-30, 60), 10)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m, m.handleMsg(msg)
	}

	return m.updateActive(msg)
}

func (m *Model) handleMsg(msg Msg) tea.Cmd {
	switch msg.kind {
	case MsgTokenFetched:
		if err := errOf(msg.data); err != nil {
			m.controller.Fail("Could not get token: " + err.Error())
			return m.syncTicker()
		}
		return m.run(m.controller.Connect())

	case MsgPlaylistsFetched:
		data := msg.data.(fetched[models.Playlist])
		if data.err != nil {
			m.err = data.err
			return nil
		}
		m.err = nil
		m.playlistList.SetItems(playlistItems(data.items))
		return nil

	case MsgTracksFetched:
		data := msg.data.(tracksFetched)
		if data.err != nil {
			m.notice = fmt.Sprintf("Could not load %s: %v", data.playlist.Name, data.err)
			return nil
		}
		m.playlist = data.playlist
		m.tracks = data.tracks
		m.trackList.Title = data.playlist.Name
		m.trackList.SetItems(trackItems(data.tracks))
		m.trackList.Select(0)
		m.view = TracksView
		return nil

	case MsgSearchDue:
		data := msg.data.(searchDue)
		if !m.debounce.Current(data.seq) {
			return nil
		}
		m.searching = true
		return m.search(data.seq, data.query)

	case MsgSearchResults:
		data := msg.data.(searchResults)
		if !m.debounce.Current(data.seq) {
			return nil
		}
		m.searching = false
		if data.err != nil {
			m.notice = "Search failed: " + data.err.Error()
			return nil
		}
		m.results = data.tracks
		m.searchList.Title = fmt.Sprintf("Results for %q", data.query)
		m.searchList.SetItems(trackItems(data.tracks))
		m.searchList.Select(0)
		return nil

	case MsgDeviceEvent:
		return tea.Batch(m.handleEvent(msg.data.(playback.Event)), m.waitForEvent())

	case MsgCommandDone:
		if err := errOf(msg.data); err != nil {
			m.notice = err.Error()
		}
		return nil

	case MsgTick:
		generation := msg.data.(uint64)
		if m.controller.Tick(generation) {
			return m.scheduleTick(generation)
		}
		if generation == m.tickGen {
			m.ticking = false
		}
		return nil

	case MsgPlayRecorded:
		if err := errOf(msg.data); err != nil {
			m.logger.Warn("failed to record play", "err", err)
		}
		return nil
	}
	return nil
}

// handleEvent applies ev to the controller, restarts the ticker when needed and records a play when
// the current track changed.
func (m *Model) handleEvent(ev playback.Event) tea.Cmd {
	m.controller.Handle(ev)
	cmds := []tea.Cmd{m.syncTicker()}

	snap := m.controller.Snapshot()
	if track := snap.State.CurrentTrack; track != nil && track.ID != m.lastTrackID {
		m.lastTrackID = track.ID
		cmds = append(cmds, m.recordPlay(*track, snap.DeviceID))
	}
	return tea.Batch(cmds...)
}

// syncTicker starts a tick chain for the controller's current generation if one is not running.
func (m *Model) syncTicker() tea.Cmd {
	generation, running := m.controller.Ticker()
	if !running {
		m.ticking = false
		return nil
	}
	if m.ticking && generation == m.tickGen {
		return nil
	}
	m.tickGen = generation
	m.ticking = true
	return m.scheduleTick(generation)
}

func (m *Model) scheduleTick(generation uint64) tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return tickMsg(generation)
	})
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.forceQuit) {
		return m, tea.Quit
	}

	if m.view == SearchView && m.input.Focused() {
		return m.handleSearchInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.tab):
		return m, m.cycleView()
	case key.Matches(msg, m.keys.search):
		m.view = SearchView
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.toggle):
		return m, m.run(m.controller.TogglePlay())
	case key.Matches(msg, m.keys.next):
		return m, m.run(m.controller.SkipNext())
	case key.Matches(msg, m.keys.prev):
		return m, m.run(m.controller.SkipPrev())
	case key.Matches(msg, m.keys.forward):
		return m, m.seekBy(seekStepMs)
	case key.Matches(msg, m.keys.rewind):
		return m, m.seekBy(-seekStepMs)
	case key.Matches(msg, m.keys.louder):
		return m, m.run(m.controller.SetVolume(m.controller.Snapshot().Volume + volumeStep))
	case key.Matches(msg, m.keys.quieter):
		return m, m.run(m.controller.SetVolume(m.controller.Snapshot().Volume - volumeStep))
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistsView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		return m, m.selectItem()
	}

	return m.updateActive(msg)
}

func (m *Model) handleSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.input.Blur()
		m.view = PlaylistsView
		return m, nil
	case key.Matches(msg, m.keys.tab):
		m.input.Blur()
		return m, m.cycleView()
	case key.Matches(msg, m.keys.enter), msg.Type == tea.KeyDown:
		if len(m.results) > 0 {
			m.input.Blur()
		}
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() == before {
		return m, cmd
	}
	return m, tea.Batch(cmd, m.queryChanged(m.input.Value()))
}

// queryChanged schedules a debounced search. A blank query clears the results right away.
func (m *Model) queryChanged(query string) tea.Cmd {
	cmd := m.debounce.Schedule(query)
	if cmd == nil {
		m.searching = false
		m.results = nil
		m.searchList.Title = "Search"
		m.searchList.SetItems(nil)
	}
	return cmd
}

func (m *Model) cycleView() tea.Cmd {
	switch m.view {
	case PlaylistsView:
		if len(m.tracks) > 0 {
			m.view = TracksView
			return nil
		}
		m.view = SearchView
	case TracksView:
		m.view = SearchView
	default:
		m.view = PlaylistsView
		return nil
	}
	if len(m.results) == 0 {
		return m.input.Focus()
	}
	return nil
}

func (m *Model) selectItem() tea.Cmd {
	switch m.view {
	case PlaylistsView:
		if item, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			return m.fetchTracks(item.playlist)
		}
	case TracksView:
		return m.playFrom(m.tracks, m.trackList.Index())
	case SearchView:
		return m.playFrom(m.results, m.searchList.Index())
	}
	return nil
}

func (m *Model) playFrom(tracks []models.Track, index int) tea.Cmd {
	if index < 0 || index >= len(tracks) {
		return nil
	}
	m.notice = ""
	return m.run(m.controller.Play(tracks[index], tracks, index))
}

// seekBy moves the position by delta, clamped to the current track.
func (m *Model) seekBy(delta int) tea.Cmd {
	state := m.controller.Snapshot().State
	if state.CurrentTrack == nil {
		return nil
	}
	position := max(0, min(state.PositionMs+delta, state.DurationMs))
	return m.run(m.controller.Seek(position))
}

func (m *Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistsView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TracksView:
		m.trackList, cmd = m.trackList.Update(msg)
	case SearchView:
		if m.input.Focused() {
			m.input, cmd = m.input.Update(msg)
		} else {
			m.searchList, cmd = m.searchList.Update(msg)
		}
	}
	return m, cmd
}

// run turns a controller command into a [tea.Cmd]; nil stays nil.
func (m *Model) run(command playback.Command) tea.Cmd {
	if command == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return commandDoneMsg(command(ctx))
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	ctx, events := m.ctx, m.events
	return func() tea.Msg {
		select {
		case ev := <-events:
			return deviceEventMsg(ev)
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Model) fetchToken() tea.Cmd {
	ctx, tokens := m.ctx, m.tokens
	return func() tea.Msg {
		_, err := tokens.AccessToken(ctx)
		return tokenFetchedMsg(err)
	}
}

func (m *Model) fetchPlaylists() tea.Cmd {
	ctx, library := m.ctx, m.library
	return func() tea.Msg {
		playlists, err := library.Playlists(ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchTracks(playlist models.Playlist) tea.Cmd {
	ctx, library := m.ctx, m.library
	return func() tea.Msg {
		tracks, err := library.PlaylistTracks(ctx, playlist.ID)
		return tracksFetchedMsg(playlist, tracks, err)
	}
}

func (m *Model) search(seq uint64, query string) tea.Cmd {
	ctx, library := m.ctx, m.library
	return func() tea.Msg {
		tracks, err := library.SearchTracks(ctx, query)
		return searchResultsMsg(seq, query, tracks, err)
	}
}

func (m *Model) recordPlay(track models.Track, deviceID string) tea.Cmd {
	if m.history == nil || track.ID == "" {
		return nil
	}
	ctx, history := m.ctx, m.history
	play := models.NewPlay(track, deviceID, m.now())
	return func() tea.Msg {
		return playRecordedMsg(history.Record(ctx, play))
	}
}

// View renders the active view above the now-playing bar.
func (m *Model) View() string {
	var b strings.Builder

	switch {
	case m.err != nil && m.view == PlaylistsView:
		b.WriteString(styles.err.Render(fmt.Sprintf("Could not load playlists: %v", m.err)))
	case m.view == PlaylistsView:
		b.WriteString(m.playlistList.View())
	case m.view == TracksView:
		b.WriteString(m.trackList.View())
	case m.view == SearchView:
		b.WriteString(m.input.View())
		if m.searching {
			b.WriteString(" " + m.spinner.View())
		}
		b.WriteString("\n")
		if len(m.results) == 0 {
			b.WriteString(styles.help.Render("Type to search. Results appear when you stop typing."))
		} else {
			b.WriteString(m.searchList.View())
		}
	}
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(styles.warn.Render(m.notice) + "\n")
	}

	b.WriteString(m.renderNowPlaying(m.controller.Snapshot()))
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.helpKeys()))
	return b.String()
}

func (m *Model) helpKeys() []key.Binding {
	switch m.view {
	case TracksView:
		play := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play"))
		return []key.Binding{play, m.keys.toggle, m.keys.next, m.keys.rewind, m.keys.forward, m.keys.back, m.keys.quit}
	case SearchView:
		if m.input.Focused() {
			return []key.Binding{m.keys.enter, m.keys.tab, m.keys.back}
		}
		return []key.Binding{m.keys.search, m.keys.enter, m.keys.toggle, m.keys.louder, m.keys.quieter, m.keys.quit}
	default:
		return m.keys.ShortHelp()
	}
}
