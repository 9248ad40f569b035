package service

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "slotbook/internal/bookings/errors"
	"slotbook/internal/bookings/validator"
	"slotbook/pkg/config"
	mongotx "slotbook/pkg/db/mongo"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/kafka"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
)

// Mock repositories for testing

type mockBookingRepository struct {
	insertManyFunc func(ctx context.Context, bookings []*model.Booking) error
	findByIDFunc   func(ctx context.Context, id string) (*model.Booking, error)
	findActiveFunc func(ctx context.Context, giverID, date string) ([]*model.Booking, error)
	updateFunc     func(ctx context.Context, id string, booking *model.Booking) error
	softDeleteFunc func(ctx context.Context, id string, deletedAt time.Time, actor model.Actor) error
	listFunc       func(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	countFunc      func(ctx context.Context, filter model.BookingFilter) (int64, error)
	executeTxFunc  func(ctx context.Context, fn mongotx.TransactionFunc) error
}

func (m *mockBookingRepository) InsertMany(ctx context.Context, bookings []*model.Booking) error {
	if m.insertManyFunc != nil {
		return m.insertManyFunc(ctx, bookings)
	}
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindActiveByGiverAndDate(ctx context.Context, giverID, date string) ([]*model.Booking, error) {
	if m.findActiveFunc != nil {
		return m.findActiveFunc(ctx, giverID, date)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) Update(ctx context.Context, id string, booking *model.Booking) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, booking)
	}
	return nil
}

func (m *mockBookingRepository) SoftDelete(ctx context.Context, id string, deletedAt time.Time, actor model.Actor) error {
	if m.softDeleteFunc != nil {
		return m.softDeleteFunc(ctx, id, deletedAt, actor)
	}
	return nil
}

func (m *mockBookingRepository) List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter, limit, offset)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) CountByFilter(ctx context.Context, filter model.BookingFilter) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, filter)
	}
	return 0, nil
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if m.executeTxFunc != nil {
		return m.executeTxFunc(ctx, fn)
	}
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockSlotLockRepository struct {
	acquireFunc func(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error)
	releaseFunc func(ctx context.Context, lockID string) error
}

func (m *mockSlotLockRepository) Acquire(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
	if m.acquireFunc != nil {
		return m.acquireFunc(ctx, lock)
	}
	return lock, nil
}

func (m *mockSlotLockRepository) Release(ctx context.Context, lockID string) error {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, lockID)
	}
	return nil
}

type mockEventPublisher struct {
	published      []kafka.Message
	publishErr     error
	batchPublished [][]kafka.Message
}

func (m *mockEventPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, msg)
	return nil
}

func (m *mockEventPublisher) PublishBatch(ctx context.Context, messages []kafka.Message) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.batchPublished = append(m.batchPublished, messages)
	return nil
}

// --- Helpers ---

func newTestService(repo *mockBookingRepository, lockRepo *mockSlotLockRepository) *bookingService {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})

	cfg := &config.Config{
		Log:           log,
		MaxNoteLength: 500,
		MaxBatchSize:  50,
		SlotLockTTL:   10 * time.Second,
	}

	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		validator: validator.NewBookingValidator(cfg.MaxNoteLength, log),
		cfg:       cfg,
	}
}

func validDraft(giverID, date, start, end string) *model.BookingDraft {
	return &model.BookingDraft{
		GiverID:   giverID,
		TakerID:   "taker-1",
		Date:      date,
		StartTime: start,
		EndTime:   end,
	}
}

func takerActor() model.Actor {
	return model.Actor{ID: "taker-1", Role: model.RoleTaker}
}

func giverActor() model.Actor {
	return model.Actor{ID: "giver-1", Role: model.RoleGiver}
}

func duplicateKeyError() error {
	return mongo.WriteException{
		WriteErrors: []mongo.WriteError{{Code: 11000}},
	}
}

func assertAppErrorCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
	return appErr
}

// --- Create ---

func TestCreate_EmptyBatchIsNoOp(t *testing.T) {
	lockAcquired := false
	lockRepo := &mockSlotLockRepository{
		acquireFunc: func(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
			lockAcquired = true
			return lock, nil
		},
	}
	svc := newTestService(&mockBookingRepository{}, lockRepo)

	bookings, err := svc.Create(context.Background(), []*model.BookingDraft{}, takerActor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bookings) != 0 {
		t.Errorf("expected empty result, got %d bookings", len(bookings))
	}
	if lockAcquired {
		t.Error("empty batch must not acquire locks")
	}
}

func TestCreate_DerivesStatusFromRole(t *testing.T) {
	cases := []struct {
		name      string
		actor     model.Actor
		requested model.Status
		want      model.Status
	}{
		{"taker gets PENDING", takerActor(), "", model.StatusPending},
		{"taker cannot choose status", takerActor(), model.StatusAccepted, model.StatusPending},
		{"giver gets AVAILABLE", giverActor(), "", model.StatusAvailable},
		{"giver cannot choose status", giverActor(), model.StatusCompleted, model.StatusAvailable},
		{"system keeps requested", model.Actor{ID: "svc", Role: model.RoleSystem}, model.StatusAccepted, model.StatusAccepted},
		{"system without requested gets DRAFT", model.Actor{ID: "svc", Role: model.RoleSystem}, "", model.StatusDraft},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var inserted []*model.Booking
			repo := &mockBookingRepository{
				insertManyFunc: func(ctx context.Context, bookings []*model.Booking) error {
					inserted = bookings
					return nil
				},
			}
			svc := newTestService(repo, &mockSlotLockRepository{})

			draft := validDraft("giver-1", "2026-09-01", "09:00", "10:00")
			draft.Status = tc.requested

			_, err := svc.Create(context.Background(), []*model.BookingDraft{draft}, tc.actor)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(inserted) != 1 {
				t.Fatalf("expected 1 inserted booking, got %d", len(inserted))
			}
			if inserted[0].Status != tc.want {
				t.Errorf("expected status %s, got %s", tc.want, inserted[0].Status)
			}
		})
	}
}

func TestCreate_StampsAuditFields(t *testing.T) {
	var inserted []*model.Booking
	repo := &mockBookingRepository{
		insertManyFunc: func(ctx context.Context, bookings []*model.Booking) error {
			inserted = bookings
			return nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	actor := takerActor()
	_, err := svc.Create(context.Background(), []*model.BookingDraft{
		validDraft("giver-1", "2026-09-01", "09:00", "10:00"),
	}, actor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := inserted[0]
	if b.CreatedBy != actor.ID || b.CreatedByRole != actor.Role {
		t.Errorf("created-by audit fields not stamped: %+v", b)
	}
	if b.UpdatedBy != actor.ID || b.UpdatedByRole != actor.Role {
		t.Errorf("updated-by audit fields not mirrored on create: %+v", b)
	}
	if b.CreatedAt.IsZero() || !b.CreatedAt.Equal(b.UpdatedAt) {
		t.Errorf("expected created_at == updated_at on create, got %v / %v", b.CreatedAt, b.UpdatedAt)
	}
	if b.DeletedAt != nil {
		t.Error("new booking must not be deleted")
	}
}

func TestCreate_OpenSlotWithoutTaker(t *testing.T) {
	var inserted []*model.Booking
	repo := &mockBookingRepository{
		insertManyFunc: func(ctx context.Context, bookings []*model.Booking) error {
			inserted = bookings
			return nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	// A giver opening a slot has no requester yet.
	draft := &model.BookingDraft{
		GiverID:   "giver-1",
		Date:      "2026-09-01",
		StartTime: "09:00",
		EndTime:   "10:00",
	}
	bookings, err := svc.Create(context.Background(), []*model.BookingDraft{draft}, giverActor())
	if err != nil {
		t.Fatalf("takerless draft must be valid: %v", err)
	}
	if len(inserted) != 1 || len(bookings) != 1 {
		t.Fatalf("expected 1 inserted booking, got %d", len(inserted))
	}
	if inserted[0].TakerID != "" {
		t.Errorf("open slot must have no taker, got %q", inserted[0].TakerID)
	}
	if inserted[0].Status != model.StatusAvailable {
		t.Errorf("giver-created open slot must be AVAILABLE, got %s", inserted[0].Status)
	}
}

func TestCreate_ConflictWithExistingAbortsBatch(t *testing.T) {
	inserts := 0
	repo := &mockBookingRepository{
		findActiveFunc: func(ctx context.Context, giverID, date string) ([]*model.Booking, error) {
			return []*model.Booking{
				{ID: "existing-1", GiverID: giverID, Date: date, StartTime: "09:30", EndTime: "10:30"},
			}, nil
		},
		insertManyFunc: func(ctx context.Context, bookings []*model.Booking) error {
			inserts++
			return nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	drafts := []*model.BookingDraft{
		validDraft("giver-1", "2026-09-01", "11:00", "12:00"),
		validDraft("giver-1", "2026-09-01", "09:00", "10:00"),
	}
	_, err := svc.Create(context.Background(), drafts, takerActor())

	appErr := assertAppErrorCode(t, err, apperrors.CodeConflict)
	conflicts, ok := appErr.Details["conflicts"].([]map[string]any)
	if !ok || len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict detail, got %#v", appErr.Details["conflicts"])
	}
	if conflicts[0]["id"] != "existing-1" {
		t.Errorf("conflict detail must name the existing booking, got %#v", conflicts[0])
	}
	if inserts != 0 {
		t.Error("conflicting batch must not insert anything")
	}
}

func TestCreate_SiblingConflictAbortsBatch(t *testing.T) {
	inserts := 0
	repo := &mockBookingRepository{
		insertManyFunc: func(ctx context.Context, bookings []*model.Booking) error {
			inserts++
			return nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	drafts := []*model.BookingDraft{
		validDraft("giver-1", "2026-09-01", "09:00", "10:00"),
		validDraft("giver-1", "2026-09-01", "09:30", "10:30"),
	}
	_, err := svc.Create(context.Background(), drafts, takerActor())

	assertAppErrorCode(t, err, apperrors.CodeConflict)
	if inserts != 0 {
		t.Error("batch with internal overlap must insert zero rows")
	}
}

func TestCreate_BoundaryTouchIsNotConflict(t *testing.T) {
	repo := &mockBookingRepository{
		findActiveFunc: func(ctx context.Context, giverID, date string) ([]*model.Booking, error) {
			return []*model.Booking{
				{ID: "existing-1", GiverID: giverID, Date: date, StartTime: "09:00", EndTime: "10:00"},
			}, nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	// Half-open intervals: [09:00, 10:00) and [10:00, 11:00) share only the
	// boundary instant and must coexist.
	drafts := []*model.BookingDraft{
		validDraft("giver-1", "2026-09-01", "10:00", "11:00"),
	}
	bookings, err := svc.Create(context.Background(), drafts, takerActor())
	if err != nil {
		t.Fatalf("boundary touch must not conflict: %v", err)
	}
	if len(bookings) != 1 {
		t.Errorf("expected 1 booking, got %d", len(bookings))
	}
}

func TestCreate_LockContentionReturnsConflict(t *testing.T) {
	var released []string
	lockRepo := &mockSlotLockRepository{
		acquireFunc: func(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
			if lock.ID == slotLockID("giver-2", "2026-09-01") {
				return nil, duplicateKeyError()
			}
			return lock, nil
		},
		releaseFunc: func(ctx context.Context, lockID string) error {
			released = append(released, lockID)
			return nil
		},
	}
	svc := newTestService(&mockBookingRepository{}, lockRepo)

	drafts := []*model.BookingDraft{
		validDraft("giver-1", "2026-09-01", "09:00", "10:00"),
		validDraft("giver-2", "2026-09-01", "09:00", "10:00"),
	}
	_, err := svc.Create(context.Background(), drafts, takerActor())

	assertAppErrorCode(t, err, apperrors.CodeConflict)
	if len(released) != 1 || released[0] != slotLockID("giver-1", "2026-09-01") {
		t.Errorf("locks taken before the failure must be released, got %v", released)
	}
}

func TestCreate_ReleasesLocksAfterSuccess(t *testing.T) {
	var released []string
	lockRepo := &mockSlotLockRepository{
		releaseFunc: func(ctx context.Context, lockID string) error {
			released = append(released, lockID)
			return nil
		},
	}
	svc := newTestService(&mockBookingRepository{}, lockRepo)

	_, err := svc.Create(context.Background(), []*model.BookingDraft{
		validDraft("giver-1", "2026-09-01", "09:00", "10:00"),
	}, takerActor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(released) != 1 {
		t.Errorf("expected 1 lock release, got %d", len(released))
	}
}

func TestCreate_BatchSizeLimit(t *testing.T) {
	svc := newTestService(&mockBookingRepository{}, &mockSlotLockRepository{})
	svc.cfg.MaxBatchSize = 2

	drafts := []*model.BookingDraft{
		validDraft("giver-1", "2026-09-01", "09:00", "10:00"),
		validDraft("giver-1", "2026-09-01", "10:00", "11:00"),
		validDraft("giver-1", "2026-09-01", "11:00", "12:00"),
	}
	_, err := svc.Create(context.Background(), drafts, takerActor())
	assertAppErrorCode(t, err, apperrors.CodeInvalidInput)
}

func TestCreate_InvalidDraftFailsBeforeLocking(t *testing.T) {
	lockAcquired := false
	lockRepo := &mockSlotLockRepository{
		acquireFunc: func(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
			lockAcquired = true
			return lock, nil
		},
	}
	svc := newTestService(&mockBookingRepository{}, lockRepo)

	drafts := []*model.BookingDraft{
		validDraft("giver-1", "2026-09-01", "10:00", "09:00"), // inverted interval
	}
	_, err := svc.Create(context.Background(), drafts, takerActor())

	assertAppErrorCode(t, err, apperrors.CodeValidation)
	if lockAcquired {
		t.Error("invalid input must be rejected before any lock is taken")
	}
}

func TestCreate_InvalidActorRejected(t *testing.T) {
	svc := newTestService(&mockBookingRepository{}, &mockSlotLockRepository{})

	_, err := svc.Create(context.Background(), []*model.BookingDraft{
		validDraft("giver-1", "2026-09-01", "09:00", "10:00"),
	}, model.Actor{ID: "x", Role: "ADMIN"})
	assertAppErrorCode(t, err, apperrors.CodeInvalidInput)
}

func TestCreate_PublishesEvents(t *testing.T) {
	events := &mockEventPublisher{}
	svc := newTestService(&mockBookingRepository{}, &mockSlotLockRepository{})
	svc.events = events

	_, err := svc.Create(context.Background(), []*model.BookingDraft{
		validDraft("giver-1", "2026-09-01", "09:00", "10:00"),
		validDraft("giver-1", "2026-09-01", "10:00", "11:00"),
	}, takerActor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events.batchPublished) != 1 || len(events.batchPublished[0]) != 2 {
		t.Fatalf("expected one batch of 2 events, got %v", events.batchPublished)
	}
	if events.batchPublished[0][0].GetEventType() != EventBookingCreated {
		t.Errorf("expected event type %s, got %s", EventBookingCreated, events.batchPublished[0][0].GetEventType())
	}
}

func TestCreate_PublishFailureDoesNotFailOperation(t *testing.T) {
	events := &mockEventPublisher{publishErr: context.DeadlineExceeded}
	svc := newTestService(&mockBookingRepository{}, &mockSlotLockRepository{})
	svc.events = events

	bookings, err := svc.Create(context.Background(), []*model.BookingDraft{
		validDraft("giver-1", "2026-09-01", "09:00", "10:00"),
	}, takerActor())
	if err != nil {
		t.Fatalf("publish failure must not fail a committed create: %v", err)
	}
	if len(bookings) != 1 {
		t.Errorf("expected 1 booking, got %d", len(bookings))
	}
}

// --- GetByID ---

func TestGetByID_HidesSoftDeleted(t *testing.T) {
	deletedAt := time.Now()
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, DeletedAt: &deletedAt}, nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	_, err := svc.GetByID(context.Background(), "abc123")
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
}

func TestGetByID_InvalidIDFormat(t *testing.T) {
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return nil, bookingserrors.ErrInvalidID
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	_, err := svc.GetByID(context.Background(), "not-an-object-id")
	assertAppErrorCode(t, err, apperrors.CodeInvalidInput)
}

// --- List ---

func TestList_InvalidStatusFilter(t *testing.T) {
	svc := newTestService(&mockBookingRepository{}, &mockSlotLockRepository{})

	_, _, err := svc.List(context.Background(), model.BookingFilter{Status: "BOGUS"}, 10, 0)
	assertAppErrorCode(t, err, apperrors.CodeInvalidInput)
}

func TestList_ReturnsCountAndRows(t *testing.T) {
	repo := &mockBookingRepository{
		countFunc: func(ctx context.Context, filter model.BookingFilter) (int64, error) {
			return 42, nil
		},
		listFunc: func(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
			return []*model.Booking{{ID: "1"}, {ID: "2"}}, nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	bookings, count, err := svc.List(context.Background(), model.BookingFilter{GiverID: "giver-1"}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Errorf("expected count 42, got %d", count)
	}
	if len(bookings) != 2 {
		t.Errorf("expected 2 bookings, got %d", len(bookings))
	}
}

// --- Update ---

func activeBooking(id string) *model.Booking {
	return &model.Booking{
		ID:        id,
		GiverID:   "giver-1",
		TakerID:   "taker-1",
		Date:      "2026-09-01",
		StartTime: "09:00",
		EndTime:   "10:00",
		Status:    model.StatusPending,
		CreatedAt: time.Now().Add(-time.Hour),
		UpdatedAt: time.Now().Add(-time.Hour),
	}
}

func strPtr(s string) *string { return &s }

func TestUpdate_NoteOnlyPatchSkipsOverlapCheck(t *testing.T) {
	overlapChecked := false
	lockAcquired := false
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return activeBooking(id), nil
		},
		findActiveFunc: func(ctx context.Context, giverID, date string) ([]*model.Booking, error) {
			overlapChecked = true
			return nil, nil
		},
	}
	lockRepo := &mockSlotLockRepository{
		acquireFunc: func(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
			lockAcquired = true
			return lock, nil
		},
	}
	svc := newTestService(repo, lockRepo)

	patch := &model.BookingPatch{Note: strPtr("bring documents")}
	updated, err := svc.Update(context.Background(), "abc123", patch, giverActor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overlapChecked {
		t.Error("note-only patch must not run the overlap check")
	}
	if lockAcquired {
		t.Error("note-only patch must not take a slot lock")
	}
	if updated.Note != "bring documents" {
		t.Errorf("note not applied, got %q", updated.Note)
	}
}

func TestUpdate_IntervalPatchExcludesSelf(t *testing.T) {
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return activeBooking(id), nil
		},
		findActiveFunc: func(ctx context.Context, giverID, date string) ([]*model.Booking, error) {
			// Only the booking being updated occupies the day.
			return []*model.Booking{activeBooking("abc123")}, nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	patch := &model.BookingPatch{StartTime: strPtr("09:15"), EndTime: strPtr("09:45")}
	updated, err := svc.Update(context.Background(), "abc123", patch, giverActor())
	if err != nil {
		t.Fatalf("a booking must never conflict with its own current interval: %v", err)
	}
	if updated.StartTime != "09:15" || updated.EndTime != "09:45" {
		t.Errorf("patched interval not applied: %s-%s", updated.StartTime, updated.EndTime)
	}
}

func TestUpdate_IntervalConflictRejected(t *testing.T) {
	updateCalled := false
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return activeBooking(id), nil
		},
		findActiveFunc: func(ctx context.Context, giverID, date string) ([]*model.Booking, error) {
			return []*model.Booking{
				activeBooking("abc123"),
				{ID: "other-1", GiverID: giverID, Date: date, StartTime: "11:00", EndTime: "12:00"},
			}, nil
		},
		updateFunc: func(ctx context.Context, id string, booking *model.Booking) error {
			updateCalled = true
			return nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	patch := &model.BookingPatch{StartTime: strPtr("11:30"), EndTime: strPtr("12:30")}
	_, err := svc.Update(context.Background(), "abc123", patch, giverActor())

	assertAppErrorCode(t, err, apperrors.CodeConflict)
	if updateCalled {
		t.Error("conflicting update must not persist")
	}
}

func TestUpdate_CrossFieldIntervalValidated(t *testing.T) {
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return activeBooking(id), nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	// Existing end is 10:00; moving start past it without touching end must
	// fail on the effective merged interval.
	patch := &model.BookingPatch{StartTime: strPtr("10:30")}
	_, err := svc.Update(context.Background(), "abc123", patch, giverActor())
	assertAppErrorCode(t, err, apperrors.CodeValidation)
}

func TestUpdate_DeletedBookingNotFound(t *testing.T) {
	deletedAt := time.Now()
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, DeletedAt: &deletedAt}, nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	patch := &model.BookingPatch{Note: strPtr("x")}
	_, err := svc.Update(context.Background(), "abc123", patch, giverActor())
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
}

func TestUpdate_StampsAuditFields(t *testing.T) {
	var persisted *model.Booking
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return activeBooking(id), nil
		},
		updateFunc: func(ctx context.Context, id string, booking *model.Booking) error {
			persisted = booking
			return nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	actor := model.Actor{ID: "admin-1", Role: model.RoleSystem}
	patch := &model.BookingPatch{Status: statusPtr(model.StatusAccepted)}
	_, err := svc.Update(context.Background(), "abc123", patch, actor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if persisted.UpdatedBy != "admin-1" || persisted.UpdatedByRole != model.RoleSystem {
		t.Errorf("updated-by audit fields not stamped: %+v", persisted)
	}
	if persisted.Status != model.StatusAccepted {
		t.Errorf("expected status ACCEPTED, got %s", persisted.Status)
	}
}

func statusPtr(s model.Status) *model.Status { return &s }

// --- Delete ---

func TestDelete_Succeeds(t *testing.T) {
	var deletedID string
	var deletedBy model.Actor
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return activeBooking(id), nil
		},
		softDeleteFunc: func(ctx context.Context, id string, deletedAt time.Time, actor model.Actor) error {
			deletedID = id
			deletedBy = actor
			return nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	result, err := svc.Delete(context.Background(), "abc123", giverActor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != model.DeletionSuccess {
		t.Errorf("expected SUCCESS, got %s", result)
	}
	if deletedID != "abc123" || deletedBy.ID != "giver-1" {
		t.Errorf("soft delete got id=%s actor=%+v", deletedID, deletedBy)
	}
}

func TestDelete_AlreadyDeletedIsIdempotent(t *testing.T) {
	deletedAt := time.Now()
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, DeletedAt: &deletedAt}, nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	result, err := svc.Delete(context.Background(), "abc123", giverActor())
	if err != nil {
		t.Fatalf("repeat delete must not error: %v", err)
	}
	if result != model.DeletionAlreadyDeleted {
		t.Errorf("expected ALREADY_DELETED, got %s", result)
	}
}

func TestDelete_RacedDeleteCountsAsAlreadyDeleted(t *testing.T) {
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return activeBooking(id), nil
		},
		softDeleteFunc: func(ctx context.Context, id string, deletedAt time.Time, actor model.Actor) error {
			// Another request deleted the row between fetch and stamp.
			return bookingserrors.ErrNotFound
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})

	result, err := svc.Delete(context.Background(), "abc123", giverActor())
	if err != nil {
		t.Fatalf("raced delete must not error: %v", err)
	}
	if result != model.DeletionAlreadyDeleted {
		t.Errorf("expected ALREADY_DELETED, got %s", result)
	}
}

func TestDelete_MissingBookingNotFound(t *testing.T) {
	svc := newTestService(&mockBookingRepository{}, &mockSlotLockRepository{})

	result, err := svc.Delete(context.Background(), "missing", giverActor())
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
	if result != model.DeletionNotFound {
		t.Errorf("expected NOT_FOUND result, got %s", result)
	}
}

func TestDelete_PublishesDeletionEvent(t *testing.T) {
	events := &mockEventPublisher{}
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return activeBooking(id), nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{})
	svc.events = events

	_, err := svc.Delete(context.Background(), "abc123", giverActor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events.published))
	}
	if events.published[0].GetEventType() != EventBookingDeleted {
		t.Errorf("expected event type %s, got %s", EventBookingDeleted, events.published[0].GetEventType())
	}
}
