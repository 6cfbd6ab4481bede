// Package events defines the typed mutation events broadcast to clients.
package events

import "time"

// Fixed event type strings. Clients match on these verbatim.
const (
	ProjectSwitched     = "project.switched"
	ProjectReset        = "project.reset"
	ProjectDeleted      = "project.deleted"
	NoteCreated         = "note.created"
	NoteUpdated         = "note.updated"
	NoteDeleted         = "note.deleted"
	NoteVersionRestored = "note.version.restored"
	NoteExportQueued    = "note.export.queued"
	VersionExportQueued = "note.version.export.queued"
	BackupCompleted     = "backup.completed"
	IndexJobCompleted   = "index.job.completed"
	AISessionCompleted  = "ai.session.completed"
	Ping                = "ping"
)

// Event is a transient notification. It is never persisted and is consumed
// at most once by whichever clients are connected when it fires.
type Event struct {
	Type      string
	Payload   any
	Timestamp time.Time
}

// New builds an event stamped with the current time.
func New(eventType string, payload any) Event {
	return Event{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()}
}

// Publisher delivers events to connected clients. Delivery is best-effort:
// implementations must never block the caller on a slow subscriber and a
// failed delivery never surfaces as an error to the mutating caller.
type Publisher interface {
	Publish(e Event)
}

// Discard is a Publisher that drops everything. Useful in tests and for
// components that run without a broker.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(Event) {}
