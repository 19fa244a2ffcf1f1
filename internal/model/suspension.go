package model

import (
	"time"

	"github.com/google/uuid"
)

type SuspensionType string

const (
	SuspensionTypeTemporary     SuspensionType = "temporary"
	SuspensionTypePermanent     SuspensionType = "permanent"
	SuspensionTypeInvestigation SuspensionType = "investigation"
)

type SuspensionStatus string

const (
	SuspensionStatusActive      SuspensionStatus = "active"
	SuspensionStatusLifted      SuspensionStatus = "lifted"
	SuspensionStatusExpired     SuspensionStatus = "expired"
	SuspensionStatusRevoked     SuspensionStatus = "revoked"
	SuspensionStatusUnderReview SuspensionStatus = "under_review"
)

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

type AppealStatus string

const (
	AppealStatusNone        AppealStatus = "none"
	AppealStatusSubmitted   AppealStatus = "submitted"
	AppealStatusUnderReview AppealStatus = "under_review"
	AppealStatusApproved    AppealStatus = "approved"
	AppealStatusRejected    AppealStatus = "rejected"
)

// Reason categories
const (
	ReasonCategoryMisconduct    = "misconduct"
	ReasonCategoryCompliance    = "compliance"
	ReasonCategoryPatientSafety = "patient_safety"
	ReasonCategoryDocumentation = "documentation"
	ReasonCategoryOther         = "other"
)

type SuspensionReason struct {
	Category    string   `json:"category" bson:"category"`
	Description string   `json:"description" bson:"description"`
	Severity    Severity `json:"severity" bson:"severity"`
}

type SuspensionPeriod struct {
	StartDate time.Time  `json:"start_date" bson:"startDate"`
	EndDate   *time.Time `json:"end_date" bson:"endDate"`
	// Duration in days; nil means indefinite.
	Duration *int `json:"duration" bson:"duration"`
}

// Impact lists what a suspended doctor is restricted from.
type Impact struct {
	PatientAccess bool `json:"patient_access" bson:"patientAccess"`
	Scheduling    bool `json:"scheduling" bson:"scheduling"`
	Prescriptions bool `json:"prescriptions" bson:"prescriptions"`
	SystemAccess  bool `json:"system_access" bson:"systemAccess"`
}

// Normalize applies the rule that losing system access restricts everything.
func (i Impact) Normalize() Impact {
	if i.SystemAccess {
		return Impact{PatientAccess: true, Scheduling: true, Prescriptions: true, SystemAccess: true}
	}
	return i
}

type NotificationFlags struct {
	DoctorNotified   bool `json:"doctor_notified" bson:"doctorNotified"`
	PatientsNotified bool `json:"patients_notified" bson:"patientsNotified"`
	PublicVisible    bool `json:"public_visible" bson:"publicVisible"`
}

func DefaultNotificationFlags() NotificationFlags {
	return NotificationFlags{DoctorNotified: true}
}

type Suspension struct {
	ID            uuid.UUID          `json:"id" bson:"_id"`
	DoctorID      uuid.UUID          `json:"doctor_id" bson:"doctorId"`
	Type          SuspensionType     `json:"type" bson:"type"`
	Status        SuspensionStatus   `json:"status" bson:"status"`
	Severity      Severity           `json:"severity" bson:"severity"`
	Reasons       []SuspensionReason `json:"reasons" bson:"reasons"`
	Period        SuspensionPeriod   `json:"suspension_period" bson:"suspensionPeriod"`
	Impact        Impact             `json:"impact" bson:"impact"`
	SuspendedBy   uuid.UUID          `json:"suspended_by" bson:"suspendedBy"`
	ReviewedBy    []uuid.UUID        `json:"reviewed_by" bson:"reviewedBy"`
	AppealStatus  AppealStatus       `json:"appeal_status" bson:"appealStatus"`
	AppealNotes   string             `json:"appeal_notes,omitempty" bson:"appealNotes,omitempty"`
	LiftNote      string             `json:"lift_note,omitempty" bson:"liftNote,omitempty"`
	Notifications NotificationFlags  `json:"notifications" bson:"notifications"`
	CreatedAt     time.Time          `json:"created_at" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updatedAt"`
}

// IsActive reports whether the record still restricts the doctor.
func (s *Suspension) IsActive() bool {
	return s.Status == SuspensionStatusActive || s.Status == SuspensionStatusUnderReview
}

// Expired reports whether a finite suspension has passed its end date.
func (s *Suspension) Expired(now time.Time) bool {
	return s.IsActive() && s.Period.EndDate != nil && !now.Before(*s.Period.EndDate)
}
