package service

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"fleetshare/pkg/config"
	apperrors "fleetshare/pkg/errors"
	"fleetshare/pkg/kafka"
	"fleetshare/pkg/logger"
	"fleetshare/pkg/model"
)

const (
	testGroupID   = "507f1f77bcf86cd799439050"
	testVehicleID = "507f1f77bcf86cd799439051"
	testUserA     = "507f1f77bcf86cd799439052"
	testUserB     = "507f1f77bcf86cd799439053"
	testUserC     = "507f1f77bcf86cd799439054"
)

type mockUsageStatRepository struct {
	insertManyFunc       func(ctx context.Context, stats []*model.UsageStat) error
	findLatestPeriodFunc func(ctx context.Context, groupID, vehicleID string) ([]*model.UsageStat, error)
	findByPeriodFunc     func(ctx context.Context, groupID, vehicleID string, periodStart, periodEnd time.Time) ([]*model.UsageStat, error)
}

func (m *mockUsageStatRepository) InsertMany(ctx context.Context, stats []*model.UsageStat) error {
	if m.insertManyFunc != nil {
		return m.insertManyFunc(ctx, stats)
	}
	return nil
}

func (m *mockUsageStatRepository) FindLatestPeriod(ctx context.Context, groupID, vehicleID string) ([]*model.UsageStat, error) {
	if m.findLatestPeriodFunc != nil {
		return m.findLatestPeriodFunc(ctx, groupID, vehicleID)
	}
	return nil, nil
}

func (m *mockUsageStatRepository) FindByPeriod(ctx context.Context, groupID, vehicleID string, periodStart, periodEnd time.Time) ([]*model.UsageStat, error) {
	if m.findByPeriodFunc != nil {
		return m.findByPeriodFunc(ctx, groupID, vehicleID, periodStart, periodEnd)
	}
	return nil, nil
}

type mockFairnessScoreRepository struct {
	insertManyFunc             func(ctx context.Context, scores []*model.FairnessScore) error
	findLatestPeriodFunc       func(ctx context.Context, groupID, vehicleID string) ([]*model.FairnessScore, error)
	findLatestForUserFunc      func(ctx context.Context, userID, vehicleID string) (*model.FairnessScore, error)
	findRecentCalculationsFunc func(ctx context.Context, groupID, vehicleID string, limit int) ([][]*model.FairnessScore, error)
}

func (m *mockFairnessScoreRepository) InsertMany(ctx context.Context, scores []*model.FairnessScore) error {
	if m.insertManyFunc != nil {
		return m.insertManyFunc(ctx, scores)
	}
	return nil
}

func (m *mockFairnessScoreRepository) FindLatestPeriod(ctx context.Context, groupID, vehicleID string) ([]*model.FairnessScore, error) {
	if m.findLatestPeriodFunc != nil {
		return m.findLatestPeriodFunc(ctx, groupID, vehicleID)
	}
	return nil, nil
}

func (m *mockFairnessScoreRepository) FindLatestForUser(ctx context.Context, userID, vehicleID string) (*model.FairnessScore, error) {
	if m.findLatestForUserFunc != nil {
		return m.findLatestForUserFunc(ctx, userID, vehicleID)
	}
	return nil, nil
}

func (m *mockFairnessScoreRepository) FindRecentCalculations(ctx context.Context, groupID, vehicleID string, limit int) ([][]*model.FairnessScore, error) {
	if m.findRecentCalculationsFunc != nil {
		return m.findRecentCalculationsFunc(ctx, groupID, vehicleID, limit)
	}
	return nil, nil
}

type mockRecommendationRepository struct {
	created          []*model.Recommendation
	findByIDFunc     func(ctx context.Context, id string) (*model.Recommendation, error)
	updateStatusFunc func(ctx context.Context, id string, fromStatuses []string, toStatus string, stampReadAt bool) (int64, error)
}

func (m *mockRecommendationRepository) Create(ctx context.Context, rec *model.Recommendation) error {
	rec.ID = fmt.Sprintf("507f1f77bcf86cd79943%04d", len(m.created)+1)
	m.created = append(m.created, rec)
	return nil
}

func (m *mockRecommendationRepository) FindByID(ctx context.Context, id string) (*model.Recommendation, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockRecommendationRepository) FindByGroup(ctx context.Context, groupID, status string, limit int, offset int64) ([]*model.Recommendation, error) {
	return m.created, nil
}

func (m *mockRecommendationRepository) CountByGroup(ctx context.Context, groupID, status string) (int64, error) {
	return int64(len(m.created)), nil
}

func (m *mockRecommendationRepository) UpdateStatus(ctx context.Context, id string, fromStatuses []string, toStatus string, stampReadAt bool) (int64, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, fromStatuses, toStatus, stampReadAt)
	}
	return 1, nil
}

type stubReservationReader struct {
	reservations []*model.Reservation
	err          error
}

func (s *stubReservationReader) FindForAggregation(ctx context.Context, groupID, vehicleID string, periodStart, periodEnd time.Time, statuses []string) ([]*model.Reservation, error) {
	if s.err != nil {
		return nil, s.err
	}
	allowed := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		allowed[st] = true
	}
	var out []*model.Reservation
	for _, r := range s.reservations {
		if allowed[r.Status] {
			out = append(out, r)
		}
	}
	return out, nil
}

type stubOwnership struct {
	records []model.OwnershipRecord
	err     error
}

func (s *stubOwnership) RecordsFor(ctx context.Context, groupID, vehicleID string) ([]model.OwnershipRecord, error) {
	return s.records, s.err
}

type stubIdentity struct{}

func (s *stubIdentity) ProfileFor(ctx context.Context, userID string) (*model.UserProfile, error) {
	return &model.UserProfile{ID: userID, DisplayName: "Member " + userID[len(userID)-1:]}, nil
}

type capturingPublisher struct {
	messages []kafka.Message
}

func (p *capturingPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	p.messages = append(p.messages, msg)
	return nil
}

func fairnessTestConfig(t *testing.T) *config.Config {
	t.Helper()
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return &config.Config{
		Log:                      log,
		ReadTimeout:              5 * time.Second,
		WriteTimeout:             5 * time.Second,
		FairnessWeight:           2.0,
		PriorityThreshold:        10.0,
		ImbalanceWarnThreshold:   20.0,
		CriticalCancellationRate: 0.5,
		FairnessWindowDays:       30,
		FairnessSummaryCacheTTL:  time.Minute,
	}
}

func newFairnessTestService(
	cfg *config.Config,
	usage *mockUsageStatRepository,
	scores *mockFairnessScoreRepository,
	recs *mockRecommendationRepository,
	reader *stubReservationReader,
	ownership *stubOwnership,
	events EventPublisher,
) *fairnessService {
	return &fairnessService{
		usageRepo:    usage,
		scoreRepo:    scores,
		recRepo:      recs,
		reservations: reader,
		ownership:    ownership,
		identity:     &stubIdentity{},
		events:       events,
		cfg:          cfg,
	}
}

func completedReservation(userID string, start time.Time, hours float64) *model.Reservation {
	return &model.Reservation{
		UserID:    userID,
		VehicleID: testVehicleID,
		GroupID:   testGroupID,
		StartTime: start,
		EndTime:   start.Add(time.Duration(hours * float64(time.Hour))),
		Status:    model.ReservationStatusCompleted,
	}
}

func analysisPeriod() (time.Time, time.Time) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func TestComputeUsageStats_PercentagesSumToHundred(t *testing.T) {
	cfg := fairnessTestConfig(t)
	periodStart, periodEnd := analysisPeriod()

	reader := &stubReservationReader{reservations: []*model.Reservation{
		completedReservation(testUserA, periodStart.Add(24*time.Hour), 6),
		completedReservation(testUserA, periodStart.Add(72*time.Hour), 4),
		completedReservation(testUserB, periodStart.Add(120*time.Hour), 10),
	}}

	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, &mockFairnessScoreRepository{}, &mockRecommendationRepository{}, reader, &stubOwnership{}, nil)

	stats, err := svc.ComputeUsageStats(context.Background(), &ComputePeriodRequest{
		GroupID:     testGroupID,
		VehicleID:   testVehicleID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sum float64
	for _, st := range stats {
		sum += st.UsagePercentage
	}
	if math.Abs(sum-100) > 1e-9 {
		t.Errorf("expected usage percentages to sum to 100, got %f", sum)
	}
	if stats[0].UserID != testUserA || stats[0].UsagePercentage != 50 {
		t.Errorf("expected user A at 50%%, got %s at %f", stats[0].UserID, stats[0].UsagePercentage)
	}
}

func TestComputeUsageStats_ClampsToPeriodBoundary(t *testing.T) {
	cfg := fairnessTestConfig(t)
	periodStart, periodEnd := analysisPeriod()

	// Starts 3 hours before the period; only the inside portion counts.
	straddling := completedReservation(testUserA, periodStart.Add(-3*time.Hour), 8)

	reader := &stubReservationReader{reservations: []*model.Reservation{straddling}}
	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, &mockFairnessScoreRepository{}, &mockRecommendationRepository{}, reader, &stubOwnership{}, nil)

	stats, err := svc.ComputeUsageStats(context.Background(), &ComputePeriodRequest{
		GroupID:     testGroupID,
		VehicleID:   testVehicleID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != 1 || stats[0].TotalHoursUsed != 5 {
		t.Fatalf("expected 5 clamped hours, got %+v", stats)
	}
}

func TestComputeUsageStats_RejectsInvalidPeriod(t *testing.T) {
	cfg := fairnessTestConfig(t)
	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, &mockFairnessScoreRepository{}, &mockRecommendationRepository{}, &stubReservationReader{}, &stubOwnership{}, nil)
	periodStart, _ := analysisPeriod()

	tests := []struct {
		name string
		req  *ComputePeriodRequest
	}{
		{
			name: "missing group",
			req: &ComputePeriodRequest{
				VehicleID:   testVehicleID,
				PeriodStart: periodStart,
				PeriodEnd:   periodStart.Add(time.Hour),
			},
		},
		{
			name: "zero period start",
			req: &ComputePeriodRequest{
				GroupID:   testGroupID,
				VehicleID: testVehicleID,
				PeriodEnd: periodStart,
			},
		},
		{
			name: "end before start",
			req: &ComputePeriodRequest{
				GroupID:     testGroupID,
				VehicleID:   testVehicleID,
				PeriodStart: periodStart,
				PeriodEnd:   periodStart.Add(-time.Hour),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ComputeUsageStats(context.Background(), tt.req)
			if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
				t.Fatalf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestComputeScores_ZeroUsageOwnerScoresAgainstZero(t *testing.T) {
	cfg := fairnessTestConfig(t)
	periodStart, periodEnd := analysisPeriod()

	// User C owns a stake but never drove this period.
	reader := &stubReservationReader{reservations: []*model.Reservation{
		completedReservation(testUserA, periodStart.Add(24*time.Hour), 6),
		completedReservation(testUserB, periodStart.Add(72*time.Hour), 6),
	}}
	ownership := &stubOwnership{records: []model.OwnershipRecord{
		{UserID: testUserA, Percentage: 40},
		{UserID: testUserB, Percentage: 30},
		{UserID: testUserC, Percentage: 30},
	}}

	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, &mockFairnessScoreRepository{}, &mockRecommendationRepository{}, reader, ownership, nil)

	scores, err := svc.ComputeScores(context.Background(), &ComputePeriodRequest{
		GroupID:     testGroupID,
		VehicleID:   testVehicleID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("expected one score per owner, got %d", len(scores))
	}

	var idle *model.FairnessScore
	for _, s := range scores {
		if s.UserID == testUserC {
			idle = s
		}
	}
	if idle == nil {
		t.Fatal("expected a score row for the idle owner")
	}
	if idle.UsagePercentage != 0 {
		t.Errorf("expected zero usage, got %f", idle.UsagePercentage)
	}
	if idle.Difference != -30 {
		t.Errorf("expected difference -30, got %f", idle.Difference)
	}
	if idle.Priority != model.PriorityHigh {
		t.Errorf("idle owner must rank high priority, got %s", idle.Priority)
	}
	if idle.FairnessScore != 40 {
		t.Errorf("expected score 100-2*30=40, got %f", idle.FairnessScore)
	}
}

func TestComputeScores_BalancedOwnerIsNormal(t *testing.T) {
	cfg := fairnessTestConfig(t)
	periodStart, periodEnd := analysisPeriod()

	// Both 50% owners, both with 50% of the hours.
	reader := &stubReservationReader{reservations: []*model.Reservation{
		completedReservation(testUserA, periodStart.Add(24*time.Hour), 5),
		completedReservation(testUserB, periodStart.Add(72*time.Hour), 5),
	}}
	ownership := &stubOwnership{records: []model.OwnershipRecord{
		{UserID: testUserA, Percentage: 50},
		{UserID: testUserB, Percentage: 50},
	}}

	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, &mockFairnessScoreRepository{}, &mockRecommendationRepository{}, reader, ownership, nil)

	scores, err := svc.ComputeScores(context.Background(), &ComputePeriodRequest{
		GroupID:     testGroupID,
		VehicleID:   testVehicleID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, s := range scores {
		if s.FairnessScore != 100 {
			t.Errorf("balanced owner %s expected score 100, got %f", s.UserID, s.FairnessScore)
		}
		if s.Priority != model.PriorityNormal {
			t.Errorf("balanced owner %s expected normal priority, got %s", s.UserID, s.Priority)
		}
	}
}

func TestComputeScores_NoOwnershipRecords(t *testing.T) {
	cfg := fairnessTestConfig(t)
	periodStart, periodEnd := analysisPeriod()

	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, &mockFairnessScoreRepository{}, &mockRecommendationRepository{}, &stubReservationReader{}, &stubOwnership{}, nil)

	_, err := svc.ComputeScores(context.Background(), &ComputePeriodRequest{
		GroupID:     testGroupID,
		VehicleID:   testVehicleID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestPriorityFor_DegradesWhenOwnershipUnavailable(t *testing.T) {
	cfg := fairnessTestConfig(t)
	ownership := &stubOwnership{err: apperrors.Unavailable("ownership service")}

	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, &mockFairnessScoreRepository{}, &mockRecommendationRepository{}, &stubReservationReader{}, ownership, nil)

	lookup, err := svc.PriorityFor(context.Background(), testUserA, testGroupID, testVehicleID)
	if err != nil {
		t.Fatalf("degraded lookup must not error: %v", err)
	}
	if !lookup.Degraded {
		t.Error("expected degraded flag")
	}
	if lookup.Priority != model.PriorityNormal {
		t.Errorf("expected normal priority, got %s", lookup.Priority)
	}
	if lookup.Score != nil {
		t.Error("degraded lookup must not carry a score")
	}
}

func TestPriorityFor_ServesLastPersistedScoreWhenAggregationFails(t *testing.T) {
	cfg := fairnessTestConfig(t)

	reader := &stubReservationReader{err: apperrors.Unavailable("reservations database")}
	ownership := &stubOwnership{records: []model.OwnershipRecord{
		{UserID: testUserA, Percentage: 50},
		{UserID: testUserB, Percentage: 50},
	}}
	scores := &mockFairnessScoreRepository{
		findLatestForUserFunc: func(ctx context.Context, userID, vehicleID string) (*model.FairnessScore, error) {
			return &model.FairnessScore{
				UserID:        userID,
				VehicleID:     vehicleID,
				FairnessScore: 55,
				Priority:      model.PriorityHigh,
			}, nil
		},
	}

	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, scores, &mockRecommendationRepository{}, reader, ownership, nil)

	lookup, err := svc.PriorityFor(context.Background(), testUserA, testGroupID, testVehicleID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lookup.Degraded {
		t.Error("a persisted score answers the lookup without degrading")
	}
	if lookup.Priority != model.PriorityHigh {
		t.Errorf("expected the snapshot's priority, got %s", lookup.Priority)
	}
	if lookup.Score == nil || *lookup.Score != 55 {
		t.Errorf("expected the snapshot's score 55, got %v", lookup.Score)
	}
}

func TestPriorityFor_DegradesWithoutPersistedScore(t *testing.T) {
	cfg := fairnessTestConfig(t)

	reader := &stubReservationReader{err: apperrors.Unavailable("reservations database")}
	ownership := &stubOwnership{records: []model.OwnershipRecord{
		{UserID: testUserA, Percentage: 50},
		{UserID: testUserB, Percentage: 50},
	}}

	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, &mockFairnessScoreRepository{}, &mockRecommendationRepository{}, reader, ownership, nil)

	lookup, err := svc.PriorityFor(context.Background(), testUserA, testGroupID, testVehicleID)
	if err != nil {
		t.Fatalf("degraded lookup must not error: %v", err)
	}
	if !lookup.Degraded {
		t.Error("expected degraded flag with no score history")
	}
	if lookup.Priority != model.PriorityNormal {
		t.Errorf("expected normal priority, got %s", lookup.Priority)
	}
}

func TestPriorityFor_UnderUserGetsHighPriority(t *testing.T) {
	cfg := fairnessTestConfig(t)

	// Other owners did all the driving in the rolling window.
	reader := &stubReservationReader{reservations: []*model.Reservation{
		completedReservation(testUserB, time.Now().Add(-48*time.Hour), 8),
	}}
	ownership := &stubOwnership{records: []model.OwnershipRecord{
		{UserID: testUserA, Percentage: 50},
		{UserID: testUserB, Percentage: 50},
	}}

	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, &mockFairnessScoreRepository{}, &mockRecommendationRepository{}, reader, ownership, nil)

	lookup, err := svc.PriorityFor(context.Background(), testUserA, testGroupID, testVehicleID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lookup.Priority != model.PriorityHigh {
		t.Errorf("expected high priority for under-user, got %s", lookup.Priority)
	}
	if lookup.Score == nil {
		t.Fatal("expected a score on a healthy lookup")
	}
	if *lookup.Score != 0 {
		t.Errorf("50 point drift at weight 2 floors the score at 0, got %f", *lookup.Score)
	}
}
