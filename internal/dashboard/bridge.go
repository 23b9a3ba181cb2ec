package dashboard

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/radarmon/internal/monitor"
)

// Bridge implements monitor.Display and forwards views to the Bubble Tea
// program via program.Send(). Update never blocks the render loop: a view
// that arrives while the previous one is still pending replaces it.
type Bridge struct {
	send    func(tea.Msg)
	pending chan monitor.View
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

// NewBridge creates a new bridge that forwards views to the given program.
func NewBridge(program *tea.Program) *Bridge {
	return newBridge(program.Send)
}

func newBridge(send func(tea.Msg)) *Bridge {
	b := &Bridge{
		send:    send,
		pending: make(chan monitor.View, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go b.pump()
	return b
}

func (b *Bridge) pump() {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case v := <-b.pending:
			b.send(ViewMsg{View: v})
		}
	}
}

// Update queues v for the program, replacing any view not yet delivered.
func (b *Bridge) Update(v monitor.View) {
	for {
		select {
		case <-b.stop:
			return
		case b.pending <- v:
			return
		default:
		}
		select {
		case <-b.pending:
			b.dropped.Add(1)
		default:
		}
	}
}

// Dropped returns how many views were replaced before delivery.
func (b *Bridge) Dropped() uint64 { return b.dropped.Load() }

// MonitorDone tells the program the monitor has stopped.
func (b *Bridge) MonitorDone(err error) {
	b.send(MonitorDoneMsg{Err: err})
}

// Close stops forwarding. Views queued after Close are discarded.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.stop) })
	<-b.done
}
