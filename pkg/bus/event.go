package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of notification an event carries.
// The set is closed: every type has exactly one payload shape, resolved
// during decoding by decodePayload.
type EventType string

const (
	// EventProjectCreated announces a newly seeded project.
	EventProjectCreated EventType = "project.created"

	// EventPhaseChanged announces a project phase transition.
	EventPhaseChanged EventType = "phase.changed"

	// EventTaskAssigned announces that a worker picked up a task.
	EventTaskAssigned EventType = "task.assigned"

	// EventTaskCompleted announces that a worker finished its current task.
	EventTaskCompleted EventType = "task.completed"

	// EventDocumentUpdated announces a living-document merge.
	EventDocumentUpdated EventType = "document.updated"

	// EventArtifactCreated announces a new or updated code artifact.
	EventArtifactCreated EventType = "artifact.created"

	// EventGuidelineAdded announces a learned rule appended to the ledger.
	EventGuidelineAdded EventType = "guideline.added"

	// EventHelpRequested announces that a worker is blocked on another role.
	EventHelpRequested EventType = "help.requested"
)

// Validate checks if the EventType is a known enum value.
func (t EventType) Validate() error {
	switch t {
	case EventProjectCreated, EventPhaseChanged, EventTaskAssigned,
		EventTaskCompleted, EventDocumentUpdated, EventArtifactCreated,
		EventGuidelineAdded, EventHelpRequested:
		return nil
	default:
		return fmt.Errorf("unknown event type: %q", t)
	}
}

// Payload is the closed set of per-type event bodies. Each EventType maps
// to exactly one concrete payload struct so handlers get checked shapes
// instead of an open map.
type Payload interface {
	payload()
}

// ProjectCreatedPayload accompanies EventProjectCreated.
type ProjectCreatedPayload struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Goal      string `json:"goal,omitempty"`
}

// PhaseChangedPayload accompanies EventPhaseChanged.
type PhaseChangedPayload struct {
	ProjectID string `json:"project_id"`
	Previous  string `json:"previous"`
	Current   string `json:"current"`
}

// TaskPayload accompanies EventTaskAssigned and EventTaskCompleted.
type TaskPayload struct {
	ProjectID string `json:"project_id"`
	Role      string `json:"role"`
	Task      string `json:"task"`
	Succeeded bool   `json:"succeeded,omitempty"`
}

// DocumentUpdatedPayload accompanies EventDocumentUpdated.
type DocumentUpdatedPayload struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

// ArtifactCreatedPayload accompanies EventArtifactCreated.
type ArtifactCreatedPayload struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Kind      string `json:"kind,omitempty"`
}

// GuidelineAddedPayload accompanies EventGuidelineAdded.
type GuidelineAddedPayload struct {
	ProjectID string `json:"project_id"`
	Trigger   string `json:"trigger"`
	Rule      string `json:"rule"`
}

// HelpRequestedPayload accompanies EventHelpRequested.
type HelpRequestedPayload struct {
	ProjectID string `json:"project_id"`
	Role      string `json:"role"`
	Needs     string `json:"needs"`
}

func (ProjectCreatedPayload) payload()  {}
func (PhaseChangedPayload) payload()    {}
func (TaskPayload) payload()            {}
func (DocumentUpdatedPayload) payload() {}
func (ArtifactCreatedPayload) payload() {}
func (GuidelineAddedPayload) payload()  {}
func (HelpRequestedPayload) payload()   {}

// Event is an immutable notification created by a Bus at Emit time.
// Events are delivered to zero or more handlers and then discarded; the
// core keeps no durable event log (History provides a bounded in-memory
// window for observability).
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	EmittedBy string    `json:"emitted_by"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler is invoked for every delivered event of a subscribed type.
// Handlers run on the delivering goroutine and must be short; heavy work
// belongs in a worker's Act step.
type Handler func(*Event)

// Bus is the shared publish/subscribe contract.
type Bus interface {
	// Subscribe registers a handler for one event type. Handlers for the
	// same type fire in subscription order.
	Subscribe(t EventType, h Handler)

	// Emit constructs an event (fresh ID, current timestamp) and delivers
	// it. Delivery semantics depend on the implementation; see package doc.
	Emit(t EventType, emittedBy string, p Payload) (*Event, error)
}

// newEvent builds the immutable event value shared by both bus variants.
func newEvent(t EventType, emittedBy string, p Payload) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      t,
		EmittedBy: emittedBy,
		Payload:   p,
		Timestamp: time.Now().UTC(),
	}
}

// wireEvent is the JSON wire form of an Event. The timestamp travels as an
// RFC 3339 string and the payload as raw JSON decoded per event type.
type wireEvent struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	EmittedBy string          `json:"emitted_by"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp"`
}

// MarshalJSON implements json.Marshaler with the wire timestamp format.
func (e *Event) MarshalJSON() ([]byte, error) {
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return json.Marshal(&wireEvent{
		ID:        e.ID,
		Type:      e.Type,
		EmittedBy: e.EmittedBy,
		Payload:   payloadJSON,
		Timestamp: e.Timestamp.Format(time.RFC3339Nano),
	})
}

// UnmarshalJSON implements json.Unmarshaler, rehydrating the timestamp and
// resolving the payload shape from the event type.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	if err := w.Type.Validate(); err != nil {
		return err
	}

	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return fmt.Errorf("invalid event timestamp %q: %w", w.Timestamp, err)
	}

	payload, err := decodePayload(w.Type, w.Payload)
	if err != nil {
		return err
	}

	e.ID = w.ID
	e.Type = w.Type
	e.EmittedBy = w.EmittedBy
	e.Payload = payload
	e.Timestamp = ts
	return nil
}

// decodePayload unmarshals the raw payload into the concrete struct for
// the given event type.
func decodePayload(t EventType, raw json.RawMessage) (Payload, error) {
	var target Payload
	switch t {
	case EventProjectCreated:
		target = &ProjectCreatedPayload{}
	case EventPhaseChanged:
		target = &PhaseChangedPayload{}
	case EventTaskAssigned, EventTaskCompleted:
		target = &TaskPayload{}
	case EventDocumentUpdated:
		target = &DocumentUpdatedPayload{}
	case EventArtifactCreated:
		target = &ArtifactCreatedPayload{}
	case EventGuidelineAdded:
		target = &GuidelineAddedPayload{}
	case EventHelpRequested:
		target = &HelpRequestedPayload{}
	default:
		return nil, fmt.Errorf("no payload shape for event type %q", t)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", t, err)
		}
	}

	// Return the value, not the pointer, so payloads compare with ==.
	switch p := target.(type) {
	case *ProjectCreatedPayload:
		return *p, nil
	case *PhaseChangedPayload:
		return *p, nil
	case *TaskPayload:
		return *p, nil
	case *DocumentUpdatedPayload:
		return *p, nil
	case *ArtifactCreatedPayload:
		return *p, nil
	case *GuidelineAddedPayload:
		return *p, nil
	case *HelpRequestedPayload:
		return *p, nil
	}
	return nil, fmt.Errorf("unreachable payload type for %q", t)
}
