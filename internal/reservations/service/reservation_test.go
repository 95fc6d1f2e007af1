package service

import (
	"context"
	"sync"
	"testing"
	"time"

	reservationserrors "fleetshare/internal/reservations/errors"
	"fleetshare/internal/reservations/validator"
	"fleetshare/pkg/config"
	apperrors "fleetshare/pkg/errors"
	"fleetshare/pkg/logger"
	"fleetshare/pkg/model"

	mongotx "fleetshare/pkg/db/mongo"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	testVehicleID = "507f1f77bcf86cd799439011"
	testGroupID   = "507f1f77bcf86cd799439012"
	testUserID    = "507f1f77bcf86cd799439013"
	testOtherUser = "507f1f77bcf86cd799439014"
)

type mockReservationRepository struct {
	createFunc            func(ctx context.Context, r *model.Reservation) error
	findByIDFunc          func(ctx context.Context, id string) (*model.Reservation, error)
	findAllFunc           func(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error)
	countFunc             func(ctx context.Context) (int64, error)
	findByVehicleFunc     func(ctx context.Context, vehicleID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Reservation, error)
	countByVehicleFunc    func(ctx context.Context, vehicleID string, startTime, endTime *time.Time) (int64, error)
	findOverlappingFunc   func(ctx context.Context, vehicleID string, start, end time.Time, limit int) ([]*model.Reservation, error)
	startFunc             func(ctx context.Context, id string) (int64, error)
	completeFunc          func(ctx context.Context, id string, completion *model.ReservationCompletion) (int64, error)
	cancelFunc            func(ctx context.Context, id string, cancelledBy string) (int64, error)
	executeTransactionFns int
}

func (m *mockReservationRepository) Create(ctx context.Context, r *model.Reservation) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, r)
	}
	r.ID = "507f1f77bcf86cd799439099"
	return nil
}

func (m *mockReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.Reservation{ID: id}, nil
}

func (m *mockReservationRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockReservationRepository) FindByVehicle(ctx context.Context, vehicleID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Reservation, error) {
	if m.findByVehicleFunc != nil {
		return m.findByVehicleFunc(ctx, vehicleID, startTime, endTime, limit, offset)
	}
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) CountByVehicle(ctx context.Context, vehicleID string, startTime, endTime *time.Time) (int64, error) {
	if m.countByVehicleFunc != nil {
		return m.countByVehicleFunc(ctx, vehicleID, startTime, endTime)
	}
	return 0, nil
}

func (m *mockReservationRepository) FindActiveOverlapping(ctx context.Context, vehicleID string, start, end time.Time, limit int) ([]*model.Reservation, error) {
	if m.findOverlappingFunc != nil {
		return m.findOverlappingFunc(ctx, vehicleID, start, end, limit)
	}
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) Start(ctx context.Context, id string) (int64, error) {
	if m.startFunc != nil {
		return m.startFunc(ctx, id)
	}
	return 1, nil
}

func (m *mockReservationRepository) Complete(ctx context.Context, id string, completion *model.ReservationCompletion) (int64, error) {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, id, completion)
	}
	return 1, nil
}

func (m *mockReservationRepository) Cancel(ctx context.Context, id string, cancelledBy string) (int64, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id, cancelledBy)
	}
	return 1, nil
}

func (m *mockReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	m.executeTransactionFns++
	return fn(nil)
}

type mockLockRepository struct {
	mu     sync.Mutex
	held   map[string]bool
	failAs error
}

func newMockLockRepository() *mockLockRepository {
	return &mockLockRepository{held: make(map[string]bool)}
}

func (m *mockLockRepository) Create(ctx context.Context, lock *model.VehicleLock) (*model.VehicleLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAs != nil {
		return nil, m.failAs
	}
	if m.held[lock.ID] {
		return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
	}
	m.held[lock.ID] = true
	return lock, nil
}

func (m *mockLockRepository) Delete(ctx context.Context, lockID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, lockID)
	return nil
}

type stubFairness struct {
	lookup *model.PriorityLookup
	err    error
}

func (s *stubFairness) PriorityFor(ctx context.Context, userID, groupID, vehicleID string) (*model.PriorityLookup, error) {
	return s.lookup, s.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return &config.Config{
		Log:                   log,
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
		VehicleLockTTL:        10 * time.Second,
		BookingGracePeriod:    5 * time.Minute,
		SuggestionHorizonDays: 14,
		MaxSuggestions:        5,
	}
}

func newTestService(cfg *config.Config, repo *mockReservationRepository, locks *mockLockRepository, fairness PriorityLookup) *reservationService {
	return &reservationService{
		repo:      repo,
		lockRepo:  locks,
		validator: validator.NewReservationValidator(cfg.BookingGracePeriod, cfg.Log),
		fairness:  fairness,
		events:    nil,
		cfg:       cfg,
	}
}

func validReservation(startOffset, duration time.Duration) *model.Reservation {
	start := time.Now().Add(startOffset).Truncate(time.Second)
	return &model.Reservation{
		VehicleID: testVehicleID,
		GroupID:   testGroupID,
		UserID:    testUserID,
		StartTime: start,
		EndTime:   start.Add(duration),
		Purpose:   "grocery run",
	}
}

func TestRequest_Approved(t *testing.T) {
	cfg := testConfig(t)
	repo := &mockReservationRepository{}
	svc := newTestService(cfg, repo, newMockLockRepository(), &stubFairness{
		lookup: &model.PriorityLookup{Priority: model.PriorityHigh},
	})

	decision, err := svc.Request(context.Background(), validReservation(2*time.Hour, 3*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !decision.Approved {
		t.Fatalf("expected approval, got rejection: %s", decision.Reason)
	}
	if decision.Reservation == nil || decision.Reservation.ID == "" {
		t.Error("expected created reservation with ID")
	}
	if decision.Reservation.Status != model.ReservationStatusBooked {
		t.Errorf("expected status booked, got %s", decision.Reservation.Status)
	}
	if decision.Priority != model.PriorityHigh {
		t.Errorf("expected priority high, got %s", decision.Priority)
	}
	if repo.executeTransactionFns != 1 {
		t.Errorf("expected 1 transaction, got %d", repo.executeTransactionFns)
	}
}

func TestRequest_ConflictReturnsDecisionWithAlternatives(t *testing.T) {
	cfg := testConfig(t)
	incoming := validReservation(2*time.Hour, 2*time.Hour)

	blocking := &model.Reservation{
		ID:        "507f1f77bcf86cd799439020",
		VehicleID: testVehicleID,
		UserID:    testOtherUser,
		StartTime: incoming.StartTime.Add(-time.Hour),
		EndTime:   incoming.StartTime.Add(time.Hour),
		Status:    model.ReservationStatusBooked,
	}

	repo := &mockReservationRepository{
		findOverlappingFunc: func(ctx context.Context, vehicleID string, start, end time.Time, limit int) ([]*model.Reservation, error) {
			if blocking.Overlaps(start, end) {
				return []*model.Reservation{blocking}, nil
			}
			return nil, nil
		},
	}

	svc := newTestService(cfg, repo, newMockLockRepository(), &stubFairness{
		lookup: &model.PriorityLookup{Priority: model.PriorityNormal},
	})

	decision, err := svc.Request(context.Background(), incoming)
	if err != nil {
		t.Fatalf("conflict must yield a decision, not an error: %v", err)
	}

	if decision.Approved {
		t.Fatal("expected rejection for overlapping window")
	}
	if len(decision.Conflicts) != 1 || decision.Conflicts[0].ID != blocking.ID {
		t.Errorf("expected the blocking reservation in the decision, got %+v", decision.Conflicts)
	}
	if len(decision.Suggestions) == 0 {
		t.Error("expected alternative slot suggestions")
	}
	if decision.Reason == "" {
		t.Error("expected a rejection reason")
	}
}

func TestRequest_TouchingEndpointsDoNotConflict(t *testing.T) {
	cfg := testConfig(t)
	incoming := validReservation(3*time.Hour, 2*time.Hour)

	// Ends exactly when the incoming window starts. Half-open semantics
	// make this a clean handover, not a conflict.
	touching := &model.Reservation{
		ID:        "507f1f77bcf86cd799439021",
		VehicleID: testVehicleID,
		UserID:    testOtherUser,
		StartTime: incoming.StartTime.Add(-2 * time.Hour),
		EndTime:   incoming.StartTime,
		Status:    model.ReservationStatusBooked,
	}

	repo := &mockReservationRepository{
		findOverlappingFunc: func(ctx context.Context, vehicleID string, start, end time.Time, limit int) ([]*model.Reservation, error) {
			return []*model.Reservation{touching}, nil
		},
	}

	svc := newTestService(cfg, repo, newMockLockRepository(), &stubFairness{
		lookup: &model.PriorityLookup{Priority: model.PriorityNormal},
	})

	decision, err := svc.Request(context.Background(), incoming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Approved {
		t.Fatalf("touching endpoints must not conflict, got rejection: %s", decision.Reason)
	}
}

func TestRequest_SingleWinnerUnderConcurrentIdenticalRequests(t *testing.T) {
	cfg := testConfig(t)
	locks := newMockLockRepository()

	var mu sync.Mutex
	var stored []*model.Reservation

	repo := &mockReservationRepository{
		findOverlappingFunc: func(ctx context.Context, vehicleID string, start, end time.Time, limit int) ([]*model.Reservation, error) {
			mu.Lock()
			defer mu.Unlock()
			var out []*model.Reservation
			for _, r := range stored {
				if r.Overlaps(start, end) {
					out = append(out, r)
				}
			}
			return out, nil
		},
		createFunc: func(ctx context.Context, r *model.Reservation) error {
			mu.Lock()
			defer mu.Unlock()
			r.ID = "507f1f77bcf86cd799439099"
			r.Status = model.ReservationStatusBooked
			stored = append(stored, r)
			return nil
		},
	}

	svc := newTestService(cfg, repo, locks, &stubFairness{
		lookup: &model.PriorityLookup{Priority: model.PriorityNormal},
	})

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)
	approved := make([]bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decision, err := svc.Request(context.Background(), validReservation(2*time.Hour, 2*time.Hour))
			results[i] = err
			if err == nil && decision.Approved {
				approved[i] = true
			}
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < attempts; i++ {
		if approved[i] {
			winners++
			continue
		}
		if results[i] != nil && !apperrors.HasCode(results[i], apperrors.CodeConflict) {
			t.Errorf("loser %d: expected lock conflict, got %v", i, results[i])
		}
	}

	if winners != 1 {
		t.Fatalf("expected exactly 1 winning booking, got %d", winners)
	}
	if len(stored) != 1 {
		t.Fatalf("expected exactly 1 stored reservation, got %d", len(stored))
	}
}

func TestRequest_FairnessGateRejectsLowPriority(t *testing.T) {
	cfg := testConfig(t)
	cfg.FairnessGateBookings = true

	created := false
	repo := &mockReservationRepository{
		createFunc: func(ctx context.Context, r *model.Reservation) error {
			created = true
			return nil
		},
	}

	svc := newTestService(cfg, repo, newMockLockRepository(), &stubFairness{
		lookup: &model.PriorityLookup{Priority: model.PriorityLow},
	})

	decision, err := svc.Request(context.Background(), validReservation(time.Hour, time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Approved {
		t.Fatal("expected fairness gate rejection")
	}
	if created {
		t.Error("rejected request must not create a reservation")
	}
	if decision.Priority != model.PriorityLow {
		t.Errorf("expected low priority in decision, got %s", decision.Priority)
	}
}

func TestRequest_DegradesToNormalWhenFairnessUnavailable(t *testing.T) {
	cfg := testConfig(t)
	repo := &mockReservationRepository{}

	svc := newTestService(cfg, repo, newMockLockRepository(), &stubFairness{
		err: apperrors.Unavailable("fairness service"),
	})

	decision, err := svc.Request(context.Background(), validReservation(time.Hour, time.Hour))
	if err != nil {
		t.Fatalf("fairness outage must not block booking: %v", err)
	}
	if !decision.Approved {
		t.Fatalf("expected approval, got rejection: %s", decision.Reason)
	}
	if decision.Priority != model.PriorityNormal {
		t.Errorf("expected degraded normal priority, got %s", decision.Priority)
	}
}

func TestRequest_RejectsInvalidWindow(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(cfg, &mockReservationRepository{}, newMockLockRepository(), &stubFairness{
		lookup: &model.PriorityLookup{Priority: model.PriorityNormal},
	})

	tests := []struct {
		name   string
		mutate func(r *model.Reservation)
	}{
		{
			name: "end before start",
			mutate: func(r *model.Reservation) {
				r.EndTime = r.StartTime.Add(-time.Hour)
			},
		},
		{
			name: "zero duration",
			mutate: func(r *model.Reservation) {
				r.EndTime = r.StartTime
			},
		},
		{
			name: "start in the past beyond grace",
			mutate: func(r *model.Reservation) {
				r.StartTime = time.Now().Add(-time.Hour)
				r.EndTime = r.StartTime.Add(2 * time.Hour)
			},
		},
		{
			name: "missing vehicle",
			mutate: func(r *model.Reservation) {
				r.VehicleID = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReservation(time.Hour, time.Hour)
			tt.mutate(r)

			_, err := svc.Request(context.Background(), r)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !apperrors.HasCode(err, apperrors.CodeValidation) {
				t.Errorf("expected VALIDATION error code, got %v", err)
			}
		})
	}
}

func TestRequest_StartWithinGracePeriodAccepted(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(cfg, &mockReservationRepository{}, newMockLockRepository(), &stubFairness{
		lookup: &model.PriorityLookup{Priority: model.PriorityNormal},
	})

	r := validReservation(0, 2*time.Hour)
	r.StartTime = time.Now().Add(-2 * time.Minute)
	r.EndTime = r.StartTime.Add(2 * time.Hour)

	decision, err := svc.Request(context.Background(), r)
	if err != nil {
		t.Fatalf("start within grace period must be accepted: %v", err)
	}
	if !decision.Approved {
		t.Fatalf("expected approval, got rejection: %s", decision.Reason)
	}
}

func TestCancel_InvalidStateFromTerminalStatus(t *testing.T) {
	cfg := testConfig(t)
	repo := &mockReservationRepository{
		cancelFunc: func(ctx context.Context, id string, cancelledBy string) (int64, error) {
			return 0, nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			return &model.Reservation{ID: id, Status: model.ReservationStatusCompleted}, nil
		},
	}
	svc := newTestService(cfg, repo, newMockLockRepository(), nil)

	err := svc.Cancel(context.Background(), "507f1f77bcf86cd799439030", testUserID)
	if !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE, got %v", err)
	}
}

func TestCancel_NotFound(t *testing.T) {
	cfg := testConfig(t)
	repo := &mockReservationRepository{
		cancelFunc: func(ctx context.Context, id string, cancelledBy string) (int64, error) {
			return 0, nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			return nil, reservationserrors.ErrNotFound
		},
	}
	svc := newTestService(cfg, repo, newMockLockRepository(), nil)

	err := svc.Cancel(context.Background(), "507f1f77bcf86cd799439031", testUserID)
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestComplete_RecordsTotalsFromInUse(t *testing.T) {
	cfg := testConfig(t)

	var recorded *model.ReservationCompletion
	repo := &mockReservationRepository{
		completeFunc: func(ctx context.Context, id string, completion *model.ReservationCompletion) (int64, error) {
			recorded = completion
			return 1, nil
		},
	}
	svc := newTestService(cfg, repo, newMockLockRepository(), nil)

	err := svc.Complete(context.Background(), "507f1f77bcf86cd799439032", &model.ReservationCompletion{
		Kilometers: 42.5,
		Cost:       18.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recorded == nil || recorded.Kilometers != 42.5 || recorded.Cost != 18.0 {
		t.Errorf("expected recorded totals, got %+v", recorded)
	}
}

func TestStart_ConflictWhenStatusFlapsConcurrently(t *testing.T) {
	cfg := testConfig(t)
	repo := &mockReservationRepository{
		startFunc: func(ctx context.Context, id string) (int64, error) {
			return 0, nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			// The re-read observes a status the state machine still allows
			// to start, so the CAS lost a race rather than hit a wall.
			return &model.Reservation{ID: id, Status: model.ReservationStatusBooked}, nil
		},
	}
	svc := newTestService(cfg, repo, newMockLockRepository(), nil)

	err := svc.Start(context.Background(), "507f1f77bcf86cd799439034")
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT for a lost race, got %v", err)
	}
}

func TestStart_InvalidStateWhenNotBooked(t *testing.T) {
	cfg := testConfig(t)
	repo := &mockReservationRepository{
		startFunc: func(ctx context.Context, id string) (int64, error) {
			return 0, nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			return &model.Reservation{ID: id, Status: model.ReservationStatusCancelled}, nil
		},
	}
	svc := newTestService(cfg, repo, newMockLockRepository(), nil)

	err := svc.Start(context.Background(), "507f1f77bcf86cd799439033")
	if !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE, got %v", err)
	}
}
