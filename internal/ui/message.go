package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tunedeck/internal/models"
	"github.com/desertthunder/tunedeck/internal/playback"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgTokenFetched MsgKind = iota
	MsgPlaylistsFetched
	MsgTracksFetched
	MsgSearchDue
	MsgSearchResults
	MsgDeviceEvent
	MsgCommandDone
	MsgTick
	MsgPlayRecorded
)

type fetched[T any] struct {
	items []T
	err   error
}

type tracksFetched struct {
	playlist models.Playlist
	tracks   []models.Track
	err      error
}

type searchDue struct {
	seq   uint64
	query string
}

type searchResults struct {
	seq    uint64
	query  string
	tracks []models.Track
	err    error
}

// tokenFetchedMsg is the constructor for [MsgTokenFetched]
func tokenFetchedMsg(err error) Msg {
	return Msg{kind: MsgTokenFetched, data: err}
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: fetched[models.Playlist]{playlists, err}}
}

// tracksFetchedMsg is the constructor for [MsgTracksFetched]
func tracksFetchedMsg(playlist models.Playlist, tracks []models.Track, err error) Msg {
	return Msg{kind: MsgTracksFetched, data: tracksFetched{playlist, tracks, err}}
}

// searchDueMsg is the constructor for [MsgSearchDue]
func searchDueMsg(seq uint64, query string) Msg {
	return Msg{kind: MsgSearchDue, data: searchDue{seq, query}}
}

// searchResultsMsg is the constructor for [MsgSearchResults]
func searchResultsMsg(seq uint64, query string, tracks []models.Track, err error) Msg {
	return Msg{kind: MsgSearchResults, data: searchResults{seq, query, tracks, err}}
}

// deviceEventMsg is the constructor for [MsgDeviceEvent]
func deviceEventMsg(ev playback.Event) Msg {
	return Msg{kind: MsgDeviceEvent, data: ev}
}

// commandDoneMsg is the constructor for [MsgCommandDone]
func commandDoneMsg(err error) Msg {
	return Msg{kind: MsgCommandDone, data: err}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(generation uint64) Msg {
	return Msg{kind: MsgTick, data: generation}
}

// playRecordedMsg is the constructor for [MsgPlayRecorded]
func playRecordedMsg(err error) Msg {
	return Msg{kind: MsgPlayRecorded, data: err}
}

// errOf extracts an error payload, which may be a nil interface.
func errOf(data any) error {
	err, _ := data.(error)
	return err
}
