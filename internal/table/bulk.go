package table

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rshade/tablesync/internal/notify"
	"github.com/rshade/tablesync/internal/remote"
)

// bulkConcurrency caps the status-update chunks in flight at once.
const bulkConcurrency = 4

// ActionID names a bulk action.
type ActionID string

// Built-in bulk actions.
const (
	ActionDelete     ActionID = "delete"
	ActionActivate   ActionID = "activate"
	ActionDeactivate ActionID = "deactivate"
)

// RequestKind selects the remote call shape for a bulk request.
type RequestKind int

// Request kinds.
const (
	// RequestDelete sends the ids to the deletion endpoint.
	RequestDelete RequestKind = iota + 1
	// RequestStatus sends the ids plus status fields to the status endpoint.
	RequestStatus
)

// String implements fmt.Stringer.
func (k RequestKind) String() string {
	switch k {
	case RequestDelete:
		return "delete"
	case RequestStatus:
		return "status"
	default:
		return fmt.Sprintf("RequestKind(%d)", int(k))
	}
}

// RequestDescriptor is the transport-independent description of a bulk call.
type RequestDescriptor struct {
	Kind   RequestKind
	IDs    []string
	Fields map[string]any
}

// BulkAction maps a selection to a request.
type BulkAction struct {
	ID ActionID

	// Label is the past-tense verb used in the success message, e.g. "deleted".
	Label string

	// Destructive actions ask for confirmation in interactive front ends.
	Destructive bool

	// Extra holds static fields passed to Build.
	Extra map[string]any

	Build func(selection []string, extra map[string]any) RequestDescriptor
}

// BulkCallbacks receive the outcome of PerformBulkAction. Both are optional.
type BulkCallbacks struct {
	OnSuccess func(result *remote.MutationResult)
	OnError   func(err error)
}

// BuildDelete builds a deletion request.
func BuildDelete(selection []string, _ map[string]any) RequestDescriptor {
	return RequestDescriptor{Kind: RequestDelete, IDs: selection}
}

// BuildStatus builds a status-update request carrying extra as fields.
func BuildStatus(selection []string, extra map[string]any) RequestDescriptor {
	fields := make(map[string]any, len(extra))
	for k, v := range extra {
		fields[k] = v
	}
	return RequestDescriptor{Kind: RequestStatus, IDs: selection, Fields: fields}
}

// DefaultActions returns the built-in dispatch table.
func DefaultActions() map[ActionID]BulkAction {
	return map[ActionID]BulkAction{
		ActionDelete: {
			ID:          ActionDelete,
			Label:       "deleted",
			Destructive: true,
			Build:       BuildDelete,
		},
		ActionActivate: {
			ID:    ActionActivate,
			Label: "activated",
			Extra: map[string]any{"status": "active"},
			Build: BuildStatus,
		},
		ActionDeactivate: {
			ID:    ActionDeactivate,
			Label: "deactivated",
			Extra: map[string]any{"status": "inactive"},
			Build: BuildStatus,
		},
	}
}

// Action returns the registered action for id.
func (c *Controller) Action(id ActionID) (BulkAction, bool) {
	a, ok := c.actions[id]
	return a, ok
}

// Actions returns the registered action ids in sorted order.
func (c *Controller) Actions() []ActionID {
	ids := make([]ActionID, 0, len(c.actions))
	for id := range c.actions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PerformBulkAction runs action id against the current selection. It does
// nothing when the selection is empty. On success the selection and page
// cache are cleared and the view reloads from page one. On failure the ids
// of chunks the server already applied leave the selection and the view is
// refreshed; the rest stay selected so the action can be retried.
func (c *Controller) PerformBulkAction(ctx context.Context, id ActionID, cb BulkCallbacks) error {
	action, ok := c.actions[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, id)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if len(c.selection) == 0 {
		c.mu.Unlock()
		return nil
	}
	if c.bulkBusy {
		c.mu.Unlock()
		return ErrBulkInProgress
	}
	c.bulkBusy = true
	ids := c.selectionLocked()
	c.mu.Unlock()
	c.emit()

	defer func() {
		c.mu.Lock()
		c.bulkBusy = false
		c.mu.Unlock()
		c.emit()
	}()

	desc := action.Build(ids, action.Extra)
	log := c.logger.With().
		Str("operation", "bulk").
		Str("action", string(id)).
		Str("kind", desc.Kind.String()).
		Int("count", len(desc.IDs)).
		Logger()

	result, applied, err := c.dispatch(ctx, desc)
	if err != nil {
		log.Warn().Err(err).Int("applied", len(applied)).Msg("bulk action failed")
		if len(applied) > 0 {
			c.mu.Lock()
			for _, id := range applied {
				delete(c.selection, id)
			}
			c.resetPagesLocked()
			c.mu.Unlock()
		}
		c.notifyError(err, msgBulkFailed)
		if cb.OnError != nil {
			cb.OnError(err)
		}
		if len(applied) > 0 {
			if reloadErr := c.Reload(ctx); reloadErr != nil {
				log.Debug().Err(reloadErr).Msg("reload after partial bulk action failed")
			}
		}
		return err
	}

	c.mu.Lock()
	c.invalidateLocked()
	c.mu.Unlock()

	log.Info().Int("affected", result.Affected).Msg("bulk action completed")
	c.notifier.Notify(notify.Notification{
		Title:       "Success",
		Description: successMessage(action, len(desc.IDs), result),
		Variant:     notify.VariantSuccess,
	})
	if cb.OnSuccess != nil {
		cb.OnSuccess(result)
	}

	// Rows on screen may reference deleted or changed records.
	if reloadErr := c.Reload(ctx); reloadErr != nil {
		log.Debug().Err(reloadErr).Msg("reload after bulk action failed")
	}
	return nil
}

// dispatch routes desc to the matching remote call, in chunks. Deletions
// run one chunk at a time; status updates are idempotent and run up to
// bulkConcurrency chunks at once. applied lists the ids of every chunk the
// server accepted, also when err is non-nil.
func (c *Controller) dispatch(
	ctx context.Context,
	desc RequestDescriptor,
) (result *remote.MutationResult, applied []string, err error) {
	var mu sync.Mutex
	total := &remote.MutationResult{}

	send := func(ctx context.Context, chunk []string, _ int) error {
		var (
			res *remote.MutationResult
			err error
		)
		switch desc.Kind {
		case RequestDelete:
			res, err = c.fetcher.BulkDelete(ctx, c.cfg.Route, chunk)
		case RequestStatus:
			res, err = c.fetcher.BulkUpdateStatus(ctx, c.cfg.Route, chunk, desc.Fields)
		default:
			return fmt.Errorf("unsupported request kind %s", desc.Kind)
		}
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		applied = append(applied, chunk...)
		if res != nil {
			total.Affected += res.Affected
			if res.Message != "" {
				total.Message = res.Message
			}
		}
		return nil
	}

	if desc.Kind == RequestStatus {
		err = c.processor.ProcessConcurrent(ctx, desc.IDs, send, bulkConcurrency)
	} else {
		err = c.processor.Process(ctx, desc.IDs, send)
	}

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		return nil, applied, err
	}
	return total, applied, nil
}

func successMessage(action BulkAction, count int, result *remote.MutationResult) string {
	if result != nil && result.Message != "" {
		return result.Message
	}
	label := action.Label
	if label == "" {
		label = strings.ReplaceAll(string(action.ID), "_", " ")
	}
	noun := "records"
	if count == 1 {
		noun = "record"
	}
	return fmt.Sprintf("%d %s %s.", count, noun, label)
}

// Select adds ids to the selection.
func (c *Controller) Select(ids ...string) {
	c.mu.Lock()
	for _, id := range ids {
		if id != "" {
			c.selection[id] = struct{}{}
		}
	}
	c.mu.Unlock()
	c.emit()
}

// Deselect removes ids from the selection.
func (c *Controller) Deselect(ids ...string) {
	c.mu.Lock()
	for _, id := range ids {
		delete(c.selection, id)
	}
	c.mu.Unlock()
	c.emit()
}

// Toggle flips id in the selection and reports whether it is now selected.
func (c *Controller) Toggle(id string) bool {
	c.mu.Lock()
	_, selected := c.selection[id]
	if selected {
		delete(c.selection, id)
	} else if id != "" {
		c.selection[id] = struct{}{}
	}
	c.mu.Unlock()
	c.emit()
	return !selected && id != ""
}

// SelectVisible selects every row currently visible.
func (c *Controller) SelectVisible() {
	c.mu.Lock()
	for _, row := range c.visibleRowsLocked() {
		if id := row.ID(); id != "" {
			c.selection[id] = struct{}{}
		}
	}
	c.mu.Unlock()
	c.emit()
}

// ClearSelection empties the selection.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	clear(c.selection)
	c.mu.Unlock()
	c.emit()
}

// Selection returns the selected ids in sorted order.
func (c *Controller) Selection() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectionLocked()
}

func (c *Controller) selectionLocked() []string {
	ids := make([]string, 0, len(c.selection))
	for id := range c.selection {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
