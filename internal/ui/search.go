package ui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// SearchDelay is how long the query must stay unchanged before a search is sent.
const SearchDelay = 400 * time.Millisecond

// debouncer hands out sequence numbers for search timers. Only the most recently scheduled timer is
// current; everything older is dropped when it fires.
type debouncer struct {
	delay time.Duration
	seq   uint64
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay}
}

// Schedule supersedes any pending timer. A blank query only cancels and returns nil.
func (d *debouncer) Schedule(query string) tea.Cmd {
	d.seq++
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	seq := d.seq
	return tea.Tick(d.delay, func(time.Time) tea.Msg {
		return searchDueMsg(seq, query)
	})
}

// Current reports whether seq belongs to the latest scheduled timer.
func (d *debouncer) Current(seq uint64) bool {
	return seq == d.seq
}
