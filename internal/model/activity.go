package model

import (
	"time"

	"github.com/google/uuid"
)

type ActivityAction string

const (
	ActionSuspendDoctor      ActivityAction = "SUSPEND_DOCTOR"
	ActionAutoDeleteDoctor   ActivityAction = "AUTO_DELETE_DOCTOR"
	ActionLiftSuspension     ActivityAction = "LIFT_SUSPENSION"
	ActionExpireSuspension   ActivityAction = "EXPIRE_SUSPENSION"
	ActionSubmitAppeal       ActivityAction = "SUBMIT_APPEAL"
	ActionReviewAppeal       ActivityAction = "REVIEW_APPEAL"
	ActionRegisterDoctor     ActivityAction = "REGISTER_DOCTOR"
	ActionUpdateDoctorStatus ActivityAction = "UPDATE_DOCTOR_STATUS"
)

// Entity types
const (
	EntityDoctor     = "doctor"
	EntitySuspension = "suspension"
)

type ActivityLog struct {
	ID         uuid.UUID      `json:"id" db:"id" bson:"_id"`
	ActorID    uuid.UUID      `json:"actor_id" db:"actor_id" bson:"actorId"`
	ActorName  string         `json:"actor_name" db:"actor_name" bson:"actorName"`
	ActorRole  AdminRole      `json:"actor_role" db:"actor_role" bson:"actorRole"`
	Action     ActivityAction `json:"action" db:"action" bson:"action"`
	Details    string         `json:"details" db:"details" bson:"details"`
	EntityType string         `json:"entity_type" db:"entity_type" bson:"entityType"`
	EntityID   uuid.UUID      `json:"entity_id" db:"entity_id" bson:"entityId"`
	Metadata   JSONMap        `json:"metadata,omitempty" db:"metadata" bson:"metadata,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty" db:"ip_address" bson:"ipAddress,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty" db:"user_agent" bson:"userAgent,omitempty"`
	Anonymized bool           `json:"anonymized,omitempty" db:"-" bson:"-"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at" bson:"createdAt"`
}

type ActivityFilter struct {
	ActorID  *uuid.UUID     `form:"-"`
	Action   ActivityAction `form:"action"`
	EntityID *uuid.UUID     `form:"-"`
	Since    *time.Time     `form:"-"`
	Pagination
}
