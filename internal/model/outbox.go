package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusRetry     OutboxStatus = "retry"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Event types
const (
	EventDoctorSuspended   = "doctor.suspended"
	EventDoctorAutoDeleted = "doctor.auto_deleted"
	EventSuspensionLifted  = "suspension.lifted"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id" bson:"_id"`
	EventType    string          `db:"event_type" json:"event_type" bson:"eventType"`
	AggregateID  uuid.UUID       `db:"aggregate_id" json:"aggregate_id" bson:"aggregateId"`
	Payload      json.RawMessage `db:"payload" json:"payload" bson:"payload"`
	Status       OutboxStatus    `db:"status" json:"status" bson:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty" bson:"errorMessage,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at" bson:"createdAt"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty" bson:"processedAt,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at" bson:"updatedAt"`
	RetryCount   int             `db:"retry_count" json:"retry_count" bson:"retryCount"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty" bson:"retryAt,omitempty"`
}

// NewOutboxEvent marshals payload into a pending event.
func NewOutboxEvent(eventType string, aggregateID uuid.UUID, payload interface{}) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     data,
		Status:      OutboxStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// SuspensionEventPayload is published for doctor.suspended, suspension.lifted
// and doctor.auto_deleted.
type SuspensionEventPayload struct {
	DoctorID        uuid.UUID   `json:"doctor_id"`
	DoctorName      string      `json:"doctor_name"`
	DoctorEmail     string      `json:"doctor_email"`
	SuspensionCount int         `json:"suspension_count"`
	Warning         string      `json:"warning,omitempty"`
	Suspension      *Suspension `json:"suspension,omitempty"`
}
