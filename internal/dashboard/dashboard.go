// Package dashboard is an optional live terminal status view, enabled by
// -dashboard, that renders each peer's owned-particle count, halo size,
// and iteration number while a run is in progress. Grounded on
// lixenwraith-vi-fighter's tcell.Screen driving pattern: a Screen obtained
// from tcell.NewScreen and Init, a redraw loop keyed off a ticker, and
// tcell.EventKey polled on a background goroutine for a quit key.
package dashboard

import (
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
)

// PeerStatus is one peer's most recently reported state, read by the
// redraw loop and written by the simulation driver once per iteration.
type PeerStatus struct {
	Rank      int
	Iteration int
	Owned     int
	Halo      int
}

// Dashboard owns a tcell.Screen and redraws it on a ticker from whatever
// PeerStatus values have most recently been reported via Report.
type Dashboard struct {
	screen tcell.Screen

	mu       sync.Mutex
	statuses map[int]PeerStatus
	total    int

	quit    chan struct{}
	done    chan struct{}
	closeMu sync.Once
}

// New initializes a tcell screen sized for numPeers status lines. It
// returns an error if the terminal cannot be initialized, non-fatal for
// the run as a whole (the caller may choose to proceed without a
// dashboard, matching vi-fighter's non-fatal audio-init pattern).
func New(numPeers int) (*Dashboard, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.SetStyle(tcell.StyleDefault)
	screen.Clear()

	return &Dashboard{
		screen:   screen,
		statuses: make(map[int]PeerStatus, numPeers),
		total:    numPeers,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Report records rank's latest status, picked up by the next redraw tick.
func (d *Dashboard) Report(status PeerStatus) {
	d.mu.Lock()
	d.statuses[status.Rank] = status
	d.mu.Unlock()
}

// Run drives the redraw loop until Close is called. It is meant to run in
// its own goroutine.
func (d *Dashboard) Run() {
	defer close(d.done)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	events := make(chan tcell.Event, 8)
	go d.screen.ChannelEvents(events, d.quit)

	for {
		select {
		case <-d.quit:
			return
		case ev := <-events:
			if key, ok := ev.(*tcell.EventKey); ok {
				if key.Key() == tcell.KeyEscape || key.Key() == tcell.KeyCtrlC {
					return
				}
			}
		case <-ticker.C:
			d.redraw()
		}
	}
}

func (d *Dashboard) redraw() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.screen.Clear()
	row := 0
	emit(d.screen, row, "particle-sim dashboard")
	row++
	for rank := 0; rank < d.total; rank++ {
		s, ok := d.statuses[rank]
		if !ok {
			emit(d.screen, row, fmt.Sprintf("peer %-4d waiting...", rank))
		} else {
			emit(d.screen, row, fmt.Sprintf("peer %-4d iter %-6d owned %-8d halo %-8d", s.Rank, s.Iteration, s.Owned, s.Halo))
		}
		row++
	}
	d.screen.Show()
}

func emit(screen tcell.Screen, row int, text string) {
	style := tcell.StyleDefault
	for col, r := range text {
		screen.SetContent(col, row, r, nil, style)
	}
}

// Close stops the redraw loop and finalizes the terminal.
func (d *Dashboard) Close() {
	d.closeMu.Do(func() {
		close(d.quit)
		<-d.done
		d.screen.Fini()
	})
}
