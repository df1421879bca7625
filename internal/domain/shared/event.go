package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is something the sync engine announces after it changed local
// state: a stock level recorded, a product or order synced, stock pushed.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	// AggregateID is the business key of the subject (item code, remote order
	// id), not a surrogate key, so consumers outside this database can use it.
	AggregateID() string
	AggregateType() string
}

// BaseDomainEvent carries the envelope fields. Concrete events embed it and
// add their payload.
type BaseDomainEvent struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	At          time.Time `json:"occurred_at"`
	SubjectID   string    `json:"aggregate_id"`
	SubjectKind string    `json:"aggregate_type"`
}

// NewBaseDomainEvent stamps a fresh id and the current UTC time
func NewBaseDomainEvent(eventType, aggType, aggID string) BaseDomainEvent {
	return BaseDomainEvent{
		ID:          uuid.New(),
		Type:        eventType,
		At:          time.Now().UTC(),
		SubjectID:   aggID,
		SubjectKind: aggType,
	}
}

func (e *BaseDomainEvent) EventID() uuid.UUID { return e.ID }
func (e *BaseDomainEvent) EventType() string { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time { return e.At }
func (e *BaseDomainEvent) AggregateID() string { return e.SubjectID }
func (e *BaseDomainEvent) AggregateType() string { return e.SubjectKind }
