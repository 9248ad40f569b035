package service

import "slotbook/pkg/model"

// ResolveInitialStatus derives a new booking's lifecycle status from the
// creator's role. Human-originated bookings get their status dictated by
// role: a taker files a request awaiting acceptance, a giver opens a slot.
// Only system-originated bookings may carry a caller-chosen status; without
// one they start as a draft.
func ResolveInitialStatus(creatorRole model.Role, requested model.Status) model.Status {
	switch creatorRole {
	case model.RoleTaker:
		return model.StatusPending
	case model.RoleGiver:
		return model.StatusAvailable
	}

	if requested != "" {
		return requested
	}
	return model.StatusDraft
}
