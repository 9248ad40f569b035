package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "slotbook/internal/bookings/errors"
	"slotbook/internal/bookings/repository"
	"slotbook/internal/bookings/validator"
	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/model"
	"slotbook/pkg/sanitizer"
)

type BookingService interface {
	Create(ctx context.Context, drafts []*model.BookingDraft, actor model.Actor) ([]*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error)
	Update(ctx context.Context, id string, patch *model.BookingPatch, actor model.Actor) (*model.Booking, error)
	Delete(ctx context.Context, id string, actor model.Actor) (model.DeletionResult, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.SlotLockRepository
	validator *validator.BookingValidator
	events    EventPublisher
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.SlotLockRepository,
	validator *validator.BookingValidator,
	events EventPublisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		validator: validator,
		events:    events,
		cfg:       cfg,
	}
}

// Create persists a batch of bookings atomically. Every draft is checked
// against persisted active bookings and against its batch siblings on the
// same giver and date; any conflict aborts the whole batch with no partial
// writes. An empty batch is a valid no-op.
func (s *bookingService) Create(ctx context.Context, drafts []*model.BookingDraft, actor model.Actor) ([]*model.Booking, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return []*model.Booking{}, nil
	}
	if len(drafts) > s.cfg.MaxBatchSize {
		return nil, apperrors.InvalidInput(fmt.Sprintf("batch exceeds maximum size of %d bookings", s.cfg.MaxBatchSize))
	}

	for i, draft := range drafts {
		draft.Note = sanitizer.NormalizeNote(draft.Note)
		if err := s.validator.ValidateDraft(draft); err != nil {
			s.cfg.Log.Warn("Booking draft validation failed", "index", i, "error", err)
			return nil, apperrors.Validation("Booking validation failed", map[string]any{
				"index": i,
				"error": err.Error(),
			})
		}
	}

	// Serialize concurrent check-and-write sequences per (giver, date).
	lockIDs, err := s.acquireSlotLocks(ctx, drafts)
	if err != nil {
		return nil, err
	}
	defer s.releaseSlotLocks(ctx, lockIDs)

	now := time.Now().UTC().Truncate(time.Millisecond)
	bookings := make([]*model.Booking, len(drafts))
	for i, draft := range drafts {
		bookings[i] = s.buildBooking(draft, actor, now)
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		conflicts, err := s.collectConflicts(sessCtx, drafts)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return apperrors.ConflictWithBookings("Requested intervals overlap existing bookings", conflicts)
		}

		if err := s.repo.InsertMany(sessCtx, bookings); err != nil {
			return apperrors.Internal("Failed to create bookings", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create bookings", "count", len(drafts), "error", err)
		return nil, apperrors.AsAppError(err)
	}

	s.publishEvents(ctx, EventBookingCreated, bookings)

	s.cfg.Log.Info("Bookings created successfully",
		"count", len(bookings),
		"created_by", actor.ID,
		"created_by_role", actor.Role,
	)
	return bookings, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateLookupError(err, id)
	}
	if !booking.Active() {
		return nil, apperrors.NotFoundWithID("Booking", id)
	}

	return booking, nil
}

func (s *bookingService) List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid status filter: %s", filter.Status))
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByFilter(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.List(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// Update applies a partial patch. The overlap check runs only when the patch
// can move the booking in time; note-only or status-only patches skip it and
// never contend with other writers.
func (s *bookingService) Update(ctx context.Context, id string, patch *model.BookingPatch, actor model.Actor) (*model.Booking, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateLookupError(err, id)
	}
	if !existing.Active() {
		return nil, apperrors.NotFoundWithID("Booking", id)
	}

	if err := s.validator.ValidatePatch(patch); err != nil {
		s.cfg.Log.Warn("Booking patch validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergePatch(existing, patch)
	if err := s.validator.ValidateInterval(merged.StartTime, merged.EndTime); err != nil {
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	merged.UpdatedBy = actor.ID
	merged.UpdatedByRole = actor.Role
	merged.UpdatedAt = now

	if patch.TouchesInterval() {
		lockID, err := s.acquireSlotLock(ctx, merged.GiverID, merged.Date)
		if err != nil {
			return nil, err
		}
		defer s.releaseSlotLocks(ctx, []string{lockID})
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if patch.TouchesInterval() {
			conflicts, err := s.conflictsForInterval(sessCtx, merged.GiverID, merged.Date, merged.StartTime, merged.EndTime, merged.ID)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return apperrors.ConflictWithBookings("Requested interval overlaps existing bookings", conflicts)
			}
		}

		if err := s.repo.Update(sessCtx, id, merged); err != nil {
			if errors.Is(err, bookingserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Booking", id)
			}
			return apperrors.Internal("Failed to update booking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update booking", "id", id, "error", err)
		return nil, apperrors.AsAppError(err)
	}

	s.publishEvent(ctx, EventBookingUpdated, merged)

	s.cfg.Log.Info("Booking updated successfully",
		"id", id,
		"updated_by", actor.ID,
		"updated_by_role", actor.Role,
	)
	return merged, nil
}

// Delete soft-deletes a booking: the row keeps its audit trail and stops
// participating in overlap checks and listings. Deleting an already deleted
// booking is an idempotent no-op, not an error.
func (s *bookingService) Delete(ctx context.Context, id string, actor model.Actor) (model.DeletionResult, error) {
	if err := validateActor(actor); err != nil {
		return model.DeletionNotFound, err
	}
	if id == "" {
		return model.DeletionNotFound, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return model.DeletionNotFound, translateLookupError(err, id)
	}
	if !existing.Active() {
		return model.DeletionAlreadyDeleted, nil
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if err := s.repo.SoftDelete(ctx, id, now, actor); err != nil {
		// A concurrent delete between the fetch and the stamp leaves the
		// guarded update with nothing to match; that still counts as deleted.
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return model.DeletionAlreadyDeleted, nil
		}
		s.cfg.Log.Error("Failed to delete booking", "id", id, "error", err)
		return model.DeletionNotFound, apperrors.Internal("Failed to delete booking", err)
	}

	existing.DeletedAt = &now
	existing.DeletedBy = actor.ID
	existing.DeletedByRole = actor.Role
	s.publishEvent(ctx, EventBookingDeleted, existing)

	s.cfg.Log.Info("Booking deleted successfully",
		"id", id,
		"deleted_by", actor.ID,
		"deleted_by_role", actor.Role,
	)
	return model.DeletionSuccess, nil
}

// --- Helpers ---

func validateActor(actor model.Actor) error {
	if actor.ID == "" {
		return apperrors.InvalidInput("Actor ID cannot be empty")
	}
	if !actor.Role.IsValid() {
		return apperrors.InvalidInput(fmt.Sprintf("invalid actor role: %s", actor.Role))
	}
	return nil
}

func translateLookupError(err error, id string) error {
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", id)
	}
	if errors.Is(err, bookingserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	return apperrors.Internal("Failed to retrieve booking", err)
}

func (s *bookingService) buildBooking(draft *model.BookingDraft, actor model.Actor, now time.Time) *model.Booking {
	requested := model.Status("")
	if actor.Role == model.RoleSystem {
		requested = draft.Status
	}

	return &model.Booking{
		GiverID:       draft.GiverID,
		TakerID:       draft.TakerID,
		Date:          draft.Date,
		StartTime:     draft.StartTime,
		EndTime:       draft.EndTime,
		Status:        ResolveInitialStatus(actor.Role, requested),
		Note:          draft.Note,
		CreatedBy:     actor.ID,
		CreatedByRole: actor.Role,
		UpdatedBy:     actor.ID,
		UpdatedByRole: actor.Role,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *bookingService) mergePatch(existing *model.Booking, patch *model.BookingPatch) *model.Booking {
	merged := *existing

	if patch.TakerID != nil {
		merged.TakerID = *patch.TakerID
	}
	if patch.Date != nil {
		merged.Date = *patch.Date
	}
	if patch.StartTime != nil {
		merged.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		merged.EndTime = *patch.EndTime
	}
	if patch.Status != nil {
		merged.Status = *patch.Status
	}
	if patch.Note != nil {
		merged.Note = sanitizer.NormalizeNote(*patch.Note)
	}

	return &merged
}

// collectConflicts gathers every conflict for the batch: drafts against
// persisted active bookings, and drafts against earlier batch siblings on
// the same giver and date.
func (s *bookingService) collectConflicts(ctx context.Context, drafts []*model.BookingDraft) ([]map[string]any, error) {
	var conflicts []map[string]any

	existingByKey := make(map[string][]*model.Booking)
	for _, draft := range drafts {
		key := draft.GiverID + "|" + draft.Date
		if _, ok := existingByKey[key]; ok {
			continue
		}
		existing, err := s.repo.FindActiveByGiverAndDate(ctx, draft.GiverID, draft.Date)
		if err != nil {
			return nil, apperrors.Internal("Failed to check existing bookings", err)
		}
		existingByKey[key] = existing
	}

	for i, draft := range drafts {
		for _, b := range existingByKey[draft.GiverID+"|"+draft.Date] {
			if Overlaps(draft.StartTime, draft.EndTime, b.StartTime, b.EndTime) {
				conflicts = append(conflicts, map[string]any{
					"id":         b.ID,
					"date":       b.Date,
					"start_time": b.StartTime,
					"end_time":   b.EndTime,
				})
			}
		}

		for j := 0; j < i; j++ {
			sibling := drafts[j]
			if sibling.GiverID != draft.GiverID || sibling.Date != draft.Date {
				continue
			}
			if Overlaps(draft.StartTime, draft.EndTime, sibling.StartTime, sibling.EndTime) {
				conflicts = append(conflicts, map[string]any{
					"batch_index": j,
					"date":        sibling.Date,
					"start_time":  sibling.StartTime,
					"end_time":    sibling.EndTime,
				})
			}
		}
	}

	return conflicts, nil
}

// conflictsForInterval checks one effective interval against persisted
// active bookings, excluding the booking's own ID so a booking never
// conflicts with its pre-update self.
func (s *bookingService) conflictsForInterval(ctx context.Context, giverID, date, startTime, endTime, excludeID string) ([]map[string]any, error) {
	existing, err := s.repo.FindActiveByGiverAndDate(ctx, giverID, date)
	if err != nil {
		return nil, apperrors.Internal("Failed to check existing bookings", err)
	}

	var conflicts []map[string]any
	for _, b := range existing {
		if b.ID == excludeID {
			continue
		}
		if Overlaps(startTime, endTime, b.StartTime, b.EndTime) {
			conflicts = append(conflicts, map[string]any{
				"id":         b.ID,
				"date":       b.Date,
				"start_time": b.StartTime,
				"end_time":   b.EndTime,
			})
		}
	}

	return conflicts, nil
}

func slotLockID(giverID, date string) string {
	return fmt.Sprintf("slot_lock_%s_%s", giverID, date)
}

func (s *bookingService) acquireSlotLock(ctx context.Context, giverID, date string) (string, error) {
	lockID := slotLockID(giverID, date)

	lock := &model.SlotLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.SlotLockTTL),
	}

	if _, err := s.lockRepo.Acquire(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This time slot is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire slot lock", err)
	}

	return lockID, nil
}

// acquireSlotLocks takes one advisory lock per distinct (giver, date) in the
// batch, in sorted order so concurrent batches contend deterministically.
// On failure every lock already taken is released before returning.
func (s *bookingService) acquireSlotLocks(ctx context.Context, drafts []*model.BookingDraft) ([]string, error) {
	seen := make(map[string]bool)
	keys := make([][2]string, 0, len(drafts))
	for _, draft := range drafts {
		key := draft.GiverID + "|" + draft.Date
		if !seen[key] {
			seen[key] = true
			keys = append(keys, [2]string{draft.GiverID, draft.Date})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	acquired := make([]string, 0, len(keys))
	for _, key := range keys {
		lockID, err := s.acquireSlotLock(ctx, key[0], key[1])
		if err != nil {
			s.releaseSlotLocks(ctx, acquired)
			return nil, err
		}
		acquired = append(acquired, lockID)
	}

	return acquired, nil
}

func (s *bookingService) releaseSlotLocks(ctx context.Context, lockIDs []string) {
	for _, lockID := range lockIDs {
		if err := s.lockRepo.Release(ctx, lockID); err != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", err)
		}
	}
}
