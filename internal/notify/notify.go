// Package notify defines the user-facing notification sink used by table
// controllers to surface success and error toasts.
package notify

import (
	"sync"

	"github.com/rs/zerolog"
)

// Variant selects how a notification is presented.
type Variant string

// Notification variants.
const (
	VariantDefault     Variant = "default"
	VariantSuccess     Variant = "success"
	VariantDestructive Variant = "destructive"
)

// Notification is a single toast.
type Notification struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}

// Notifier receives notifications. Implementations must be safe for
// concurrent use and must not block for long.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to the Notifier interface.
type Func func(n Notification)

// Notify calls f(n).
func (f Func) Notify(n Notification) {
	f(n)
}

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {}) //nolint:gochecknoglobals // Stateless sink.

// LogNotifier writes notifications to a zerolog logger. Destructive
// notifications are logged at warn level, everything else at info.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(n Notification) {
	ev := l.logger.Info()
	if n.Variant == VariantDestructive {
		ev = l.logger.Warn()
	}
	ev.Str("component", "notify").
		Str("variant", string(n.Variant)).
		Str("description", n.Description).
		Msg(n.Title)
}

// Recorder keeps every notification it receives, in order.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify implements Notifier.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Last returns the most recent notification and whether one exists.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Reset forgets all recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// Multi fans a notification out to several sinks.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(n Notification) {
	for _, target := range m {
		if target != nil {
			target.Notify(n)
		}
	}
}
