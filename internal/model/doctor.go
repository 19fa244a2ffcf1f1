package model

import (
	"github.com/lib/pq"
)

type DoctorStatus string

const (
	DoctorStatusPending   DoctorStatus = "pending"
	DoctorStatusApproved  DoctorStatus = "approved"
	DoctorStatusRejected  DoctorStatus = "rejected"
	DoctorStatusSuspended DoctorStatus = "suspended"
)

// Any live doctor may be suspended; only suspension workflow callers move a
// doctor into suspended.
var doctorTransitions = map[DoctorStatus][]DoctorStatus{
	DoctorStatusPending:   {DoctorStatusApproved, DoctorStatusRejected, DoctorStatusSuspended},
	DoctorStatusApproved:  {DoctorStatusSuspended, DoctorStatusRejected},
	DoctorStatusSuspended: {DoctorStatusApproved},
	DoctorStatusRejected:  {DoctorStatusApproved, DoctorStatusSuspended},
}

func (s DoctorStatus) Valid() bool {
	_, ok := doctorTransitions[s]
	return ok
}

// CanTransitionTo reports whether a doctor in status s may move to next.
// Re-suspending an already suspended doctor is allowed so that repeated
// suspensions accumulate records.
func (s DoctorStatus) CanTransitionTo(next DoctorStatus) bool {
	if s == DoctorStatusSuspended && next == DoctorStatusSuspended {
		return true
	}
	for _, allowed := range doctorTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Doctor struct {
	Base `bson:",inline"`
	Name            string         `json:"name" db:"name" bson:"name"`
	Email           string         `json:"email" db:"email" bson:"email"`
	Phone           string         `json:"phone,omitempty" db:"phone" bson:"phone,omitempty"`
	Status          DoctorStatus   `json:"status" db:"status" bson:"status"`
	Specializations pq.StringArray `json:"specializations" db:"specializations" bson:"specializations"`

	// Patient sentiment summary
	PositiveReviews int     `json:"positive_reviews" db:"positive_reviews" bson:"positiveReviews"`
	NeutralReviews  int     `json:"neutral_reviews" db:"neutral_reviews" bson:"neutralReviews"`
	NegativeReviews int     `json:"negative_reviews" db:"negative_reviews" bson:"negativeReviews"`
	AverageRating   float64 `json:"average_rating" db:"average_rating" bson:"averageRating"`

	LockVersion int64 `json:"-" db:"lock_version" bson:"lockVersion"`
}

type DoctorFilter struct {
	Status DoctorStatus `form:"status"`
	Search string       `form:"search"`
	Pagination
}
