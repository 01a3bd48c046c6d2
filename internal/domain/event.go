package domain

// EventName identifies a broadcast event sent to every connected viewer.
type EventName string

const (
	EventTaskCreated     EventName = "taskCreated"
	EventTaskUpdated     EventName = "taskUpdated"
	EventTaskDeleted     EventName = "taskDeleted"
	EventActionUndone    EventName = "actionUndone"
	EventActionRedone    EventName = "actionRedone"
	EventPresenceChanged EventName = "presenceChanged"
)

// Event is a single broadcast frame. Payload must be JSON-serializable.
type Event struct {
	Name    EventName `json:"event"`
	Payload any       `json:"data"`
}

// ActionEvent is the payload of actionUndone and actionRedone. Subscribers
// apply the same inversion rules to their local view using Action.
type ActionEvent struct {
	Action *ActionRecord `json:"action"`
	Result any           `json:"result"`
}

// Viewer is a connected client as reported in presence events.
type Viewer struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// NewTaskCreatedEvent builds the taskCreated event.
func NewTaskCreatedEvent(task *Task) Event {
	return Event{Name: EventTaskCreated, Payload: task}
}

// NewTaskUpdatedEvent builds the taskUpdated event.
func NewTaskUpdatedEvent(task *Task) Event {
	return Event{Name: EventTaskUpdated, Payload: task}
}

// NewTaskDeletedEvent builds the taskDeleted event; its payload is the task id.
func NewTaskDeletedEvent(taskID string) Event {
	return Event{Name: EventTaskDeleted, Payload: taskID}
}

// NewActionUndoneEvent builds the actionUndone event.
func NewActionUndoneEvent(record *ActionRecord, result Result) Event {
	return Event{Name: EventActionUndone, Payload: ActionEvent{Action: record, Result: result.Value()}}
}

// NewActionRedoneEvent builds the actionRedone event.
func NewActionRedoneEvent(record *ActionRecord, result Result) Event {
	return Event{Name: EventActionRedone, Payload: ActionEvent{Action: record, Result: result.Value()}}
}

// NewPresenceChangedEvent carries the full set of connected viewers.
func NewPresenceChangedEvent(viewers []Viewer) Event {
	if viewers == nil {
		viewers = []Viewer{}
	}
	return Event{Name: EventPresenceChanged, Payload: viewers}
}
