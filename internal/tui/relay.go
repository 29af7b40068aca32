package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/tablesync/internal/notify"
	"github.com/rshade/tablesync/internal/table"
)

// Relay forwards controller events into a running Bubble Tea program.
// The controller is built before the program exists, so the program is
// attached afterwards; messages sent before Attach are dropped.
type Relay struct {
	mu      sync.Mutex
	program *tea.Program
}

// NewRelay creates an unattached relay.
func NewRelay() *Relay {
	return &Relay{}
}

// Attach sets the destination program.
func (r *Relay) Attach(p *tea.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.program = p
}

// Send delivers msg to the attached program. It must not be called from
// the program's own Update.
func (r *Relay) Send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Notifier returns a sink that forwards notifications as NotificationMsg.
func (r *Relay) Notifier() notify.Notifier {
	return notify.Func(func(n notify.Notification) {
		r.Send(NotificationMsg{Notification: n})
	})
}

// OnChange returns a controller option forwarding snapshots as SnapshotMsg.
func (r *Relay) OnChange() table.Option {
	return table.WithOnChange(func(s table.Snapshot) {
		r.Send(SnapshotMsg{Snapshot: s})
	})
}
