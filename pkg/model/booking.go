package model

import "time"

// Role identifies in what capacity an actor touches a booking.
type Role string

const (
	RoleGiver  Role = "GIVER"
	RoleTaker  Role = "TAKER"
	RoleSystem Role = "SYSTEM"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleGiver, RoleTaker, RoleSystem:
		return true
	}
	return false
}

// Status is the booking lifecycle state. Initial states are produced by
// ResolveInitialStatus; updates may set any valid status.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusAvailable Status = "AVAILABLE"
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusAvailable, StatusPending, StatusAccepted,
		StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Actor is the identity stamped into the audit fields on every mutation.
type Actor struct {
	ID   string `json:"id" validate:"required,min=1,max=64"`
	Role Role   `json:"role" validate:"required,oneof=GIVER TAKER SYSTEM"`
}

// Booking is one time interval on one date offered by a giver. The interval
// is half-open [start_time, end_time). A booking is active while deleted_at
// is unset; soft-deleted rows keep their audit trail but never participate
// in overlap checks or default listings.
type Booking struct {
	ID            string     `json:"id,omitempty" bson:"_id,omitempty"`
	GiverID       string     `json:"giver_id" bson:"giver_id"`
	TakerID       string     `json:"taker_id,omitempty" bson:"taker_id,omitempty"`
	Date          string     `json:"date" bson:"date"`
	StartTime     string     `json:"start_time" bson:"start_time"`
	EndTime       string     `json:"end_time" bson:"end_time"`
	Status        Status     `json:"status" bson:"status"`
	Note          string     `json:"note,omitempty" bson:"note,omitempty"`
	CreatedBy     string     `json:"created_by" bson:"created_by"`
	CreatedByRole Role       `json:"created_by_role" bson:"created_by_role"`
	UpdatedBy     string     `json:"updated_by" bson:"updated_by"`
	UpdatedByRole Role       `json:"updated_by_role" bson:"updated_by_role"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
	DeletedBy     string     `json:"deleted_by,omitempty" bson:"deleted_by,omitempty"`
	DeletedByRole Role       `json:"deleted_by_role,omitempty" bson:"deleted_by_role,omitempty"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" bson:"updated_at"`
}

func (b *Booking) Active() bool {
	return b.DeletedAt == nil
}

// BookingDraft is the creation input. Status is honored only for SYSTEM
// actors; human-originated bookings get their status from the creator role.
type BookingDraft struct {
	GiverID   string `json:"giver_id" validate:"required,min=1,max=64"`
	TakerID   string `json:"taker_id,omitempty" validate:"omitempty,min=1,max=64"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,time_of_day"`
	EndTime   string `json:"end_time" validate:"required,time_of_day"`
	Status    Status `json:"status,omitempty" validate:"omitempty,oneof=DRAFT AVAILABLE PENDING ACCEPTED REJECTED CANCELLED COMPLETED"`
	Note      string `json:"note,omitempty"`
}

// BookingPatch carries a partial update; nil fields keep current values.
type BookingPatch struct {
	TakerID   *string `json:"taker_id,omitempty" validate:"omitempty,min=1,max=64"`
	Date      *string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	StartTime *string `json:"start_time,omitempty" validate:"omitempty,time_of_day"`
	EndTime   *string `json:"end_time,omitempty" validate:"omitempty,time_of_day"`
	Status    *Status `json:"status,omitempty" validate:"omitempty,oneof=DRAFT AVAILABLE PENDING ACCEPTED REJECTED CANCELLED COMPLETED"`
	Note      *string `json:"note,omitempty"`
}

// TouchesInterval reports whether applying the patch can move the booking in
// time. Note-only or status-only patches skip the overlap check entirely.
func (p *BookingPatch) TouchesInterval() bool {
	return p.Date != nil || p.StartTime != nil || p.EndTime != nil
}

// BookingFilter narrows listings. Zero-value fields are ignored.
type BookingFilter struct {
	GiverID string
	TakerID string
	Status  Status
}

// DeletionResult is the outcome of a soft delete.
type DeletionResult string

const (
	DeletionSuccess        DeletionResult = "SUCCESS"
	DeletionAlreadyDeleted DeletionResult = "ALREADY_DELETED"
	DeletionNotFound       DeletionResult = "NOT_FOUND"
	// DeletionCannotDelete is reserved for future business rules, e.g.
	// forbidding deletion of ACCEPTED bookings. Nothing produces it yet.
	DeletionCannotDelete DeletionResult = "CANNOT_DELETE"
)
