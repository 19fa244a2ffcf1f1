package model

import (
	"time"

	"github.com/google/uuid"
)

// BlacklistEntry keeps the audit trail of a doctor removed at the deletion
// threshold. The terminal suspension record lives here because all of the
// doctor's SuspensionRecords are deleted with it.
type BlacklistEntry struct {
	ID              uuid.UUID   `json:"id" bson:"_id"`
	Email           string      `json:"email" bson:"email"`
	DoctorID        uuid.UUID   `json:"doctor_id" bson:"doctorId"`
	DoctorName      string      `json:"doctor_name" bson:"doctorName"`
	Reason          string      `json:"reason" bson:"reason"`
	SuspensionCount int         `json:"suspension_count" bson:"suspensionCount"`
	FinalSuspension *Suspension `json:"final_suspension,omitempty" bson:"finalSuspension,omitempty"`
	BlacklistedBy   uuid.UUID   `json:"blacklisted_by" bson:"blacklistedBy"`
	CreatedAt       time.Time   `json:"created_at" bson:"createdAt"`
}
