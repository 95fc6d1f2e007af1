package service

import (
	"context"
	"testing"
	"time"

	apperrors "fleetshare/pkg/errors"
	"fleetshare/pkg/model"
)

func scoreRow(userID string, difference float64, priority string, calculatedAt time.Time) *model.FairnessScore {
	periodStart, periodEnd := analysisPeriod()
	return &model.FairnessScore{
		UserID:              userID,
		VehicleID:           testVehicleID,
		GroupID:             testGroupID,
		OwnershipPercentage: 50,
		UsagePercentage:     50 + difference,
		Difference:          difference,
		Priority:            priority,
		PeriodStart:         periodStart,
		PeriodEnd:           periodEnd,
		CalculatedAt:        calculatedAt,
	}
}

func calculationsWithSustainedBreach(userID string, difference float64) [][]*model.FairnessScore {
	now := time.Now()
	return [][]*model.FairnessScore{
		{scoreRow(userID, difference, model.PriorityLow, now)},
		{scoreRow(userID, difference, model.PriorityLow, now.Add(-7*24*time.Hour))},
	}
}

func TestGenerateRecommendations_SustainedImbalanceWarns(t *testing.T) {
	cfg := fairnessTestConfig(t)
	recs := &mockRecommendationRepository{}
	scores := &mockFairnessScoreRepository{
		findRecentCalculationsFunc: func(ctx context.Context, groupID, vehicleID string, limit int) ([][]*model.FairnessScore, error) {
			return calculationsWithSustainedBreach(testUserA, 25), nil
		},
	}
	publisher := &capturingPublisher{}

	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, scores, recs, &stubReservationReader{}, &stubOwnership{}, publisher)

	out, err := svc.GenerateRecommendations(context.Background(), &GenerateRequest{GroupID: testGroupID, VehicleID: testVehicleID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one recommendation, got %d", len(out))
	}

	rec := out[0]
	if rec.Type != model.RecommendationTypeImbalance {
		t.Errorf("expected %s, got %s", model.RecommendationTypeImbalance, rec.Type)
	}
	if rec.Severity != model.SeverityWarning {
		t.Errorf("expected warning severity, got %s", rec.Severity)
	}
	if rec.Status != model.RecommendationStatusActive {
		t.Errorf("expected active status, got %s", rec.Status)
	}
	if rec.TargetUserID != testUserA {
		t.Errorf("expected target %s, got %s", testUserA, rec.TargetUserID)
	}
	if len(publisher.messages) != 1 {
		t.Errorf("expected one published event, got %d", len(publisher.messages))
	}
}

func TestGenerateRecommendations_SingleBreachDoesNotWarn(t *testing.T) {
	cfg := fairnessTestConfig(t)
	now := time.Now()
	scores := &mockFairnessScoreRepository{
		findRecentCalculationsFunc: func(ctx context.Context, groupID, vehicleID string, limit int) ([][]*model.FairnessScore, error) {
			// Breach in the latest calculation only; the prior period was fine.
			return [][]*model.FairnessScore{
				{scoreRow(testUserA, 25, model.PriorityLow, now)},
				{scoreRow(testUserA, 5, model.PriorityNormal, now.Add(-7*24*time.Hour))},
			}, nil
		},
	}
	recs := &mockRecommendationRepository{}

	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, scores, recs, &stubReservationReader{}, &stubOwnership{}, nil)

	out, err := svc.GenerateRecommendations(context.Background(), &GenerateRequest{GroupID: testGroupID, VehicleID: testVehicleID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("a single-period breach must not warn, got %+v", out)
	}
}

func TestGenerateRecommendations_CancellationsEscalateToCritical(t *testing.T) {
	cfg := fairnessTestConfig(t)
	periodStart, periodEnd := analysisPeriod()

	scores := &mockFairnessScoreRepository{
		findRecentCalculationsFunc: func(ctx context.Context, groupID, vehicleID string, limit int) ([][]*model.FairnessScore, error) {
			return calculationsWithSustainedBreach(testUserA, 25), nil
		},
	}
	usage := &mockUsageStatRepository{
		findByPeriodFunc: func(ctx context.Context, groupID, vehicleID string, ps, pe time.Time) ([]*model.UsageStat, error) {
			return []*model.UsageStat{{
				UserID:            testUserA,
				GroupID:           groupID,
				VehicleID:         vehicleID,
				PeriodStart:       periodStart,
				PeriodEnd:         periodEnd,
				BookingCount:      2,
				CancellationCount: 3,
			}}, nil
		},
	}
	recs := &mockRecommendationRepository{}

	svc := newFairnessTestService(cfg, usage, scores, recs, &stubReservationReader{}, &stubOwnership{}, nil)

	out, err := svc.GenerateRecommendations(context.Background(), &GenerateRequest{GroupID: testGroupID, VehicleID: testVehicleID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one recommendation, got %d", len(out))
	}
	// 3 of 5 bookings cancelled with a sustained breach: critical wins over
	// the warning for the same member.
	if out[0].Type != model.RecommendationTypeCancellations {
		t.Errorf("expected %s, got %s", model.RecommendationTypeCancellations, out[0].Type)
	}
	if out[0].Severity != model.SeverityCritical {
		t.Errorf("expected critical severity, got %s", out[0].Severity)
	}
}

func TestGenerateRecommendations_HighPriorityMemberGetsNudge(t *testing.T) {
	cfg := fairnessTestConfig(t)
	now := time.Now()
	scores := &mockFairnessScoreRepository{
		findRecentCalculationsFunc: func(ctx context.Context, groupID, vehicleID string, limit int) ([][]*model.FairnessScore, error) {
			return [][]*model.FairnessScore{
				{scoreRow(testUserB, -15, model.PriorityHigh, now)},
			}, nil
		},
	}
	recs := &mockRecommendationRepository{}

	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, scores, recs, &stubReservationReader{}, &stubOwnership{}, nil)

	out, err := svc.GenerateRecommendations(context.Background(), &GenerateRequest{GroupID: testGroupID, VehicleID: testVehicleID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one recommendation, got %d", len(out))
	}
	if out[0].Type != model.RecommendationTypeUnderuse {
		t.Errorf("expected %s, got %s", model.RecommendationTypeUnderuse, out[0].Type)
	}
	if out[0].Severity != model.SeverityInfo {
		t.Errorf("expected info severity, got %s", out[0].Severity)
	}
}

func TestGenerateRecommendations_NoScores(t *testing.T) {
	cfg := fairnessTestConfig(t)
	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, &mockFairnessScoreRepository{}, &mockRecommendationRepository{}, &stubReservationReader{}, &stubOwnership{}, nil)

	_, err := svc.GenerateRecommendations(context.Background(), &GenerateRequest{GroupID: testGroupID, VehicleID: testVehicleID})
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestUpdateRecommendationStatus_StampsReadAtOnFirstMove(t *testing.T) {
	cfg := fairnessTestConfig(t)

	var stamped bool
	recs := &mockRecommendationRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Recommendation, error) {
			return &model.Recommendation{ID: id, Status: model.RecommendationStatusActive}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, fromStatuses []string, toStatus string, stampReadAt bool) (int64, error) {
			stamped = stampReadAt
			return 1, nil
		},
	}

	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, &mockFairnessScoreRepository{}, recs, &stubReservationReader{}, &stubOwnership{}, nil)

	_, err := svc.UpdateRecommendationStatus(context.Background(), "507f1f77bcf86cd799439060", &model.RecommendationStatusUpdate{
		Status: model.RecommendationStatusRead,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stamped {
		t.Error("expected read_at stamp on the first transition out of active")
	}
}

func TestUpdateRecommendationStatus_RejectsTerminalMoves(t *testing.T) {
	cfg := fairnessTestConfig(t)
	recs := &mockRecommendationRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Recommendation, error) {
			return &model.Recommendation{ID: id, Status: model.RecommendationStatusResolved}, nil
		},
	}

	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, &mockFairnessScoreRepository{}, recs, &stubReservationReader{}, &stubOwnership{}, nil)

	_, err := svc.UpdateRecommendationStatus(context.Background(), "507f1f77bcf86cd799439061", &model.RecommendationStatusUpdate{
		Status: model.RecommendationStatusDismissed,
	})
	if !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE, got %v", err)
	}
}

func TestUpdateRecommendationStatus_LostRaceReportsFreshState(t *testing.T) {
	cfg := fairnessTestConfig(t)

	calls := 0
	recs := &mockRecommendationRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Recommendation, error) {
			calls++
			if calls == 1 {
				return &model.Recommendation{ID: id, Status: model.RecommendationStatusActive}, nil
			}
			// Another consumer resolved it between the read and the CAS.
			return &model.Recommendation{ID: id, Status: model.RecommendationStatusResolved}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, fromStatuses []string, toStatus string, stampReadAt bool) (int64, error) {
			return 0, nil
		},
	}

	svc := newFairnessTestService(cfg, &mockUsageStatRepository{}, &mockFairnessScoreRepository{}, recs, &stubReservationReader{}, &stubOwnership{}, nil)

	_, err := svc.UpdateRecommendationStatus(context.Background(), "507f1f77bcf86cd799439062", &model.RecommendationStatusUpdate{
		Status: model.RecommendationStatusRead,
	})
	if !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE after lost race, got %v", err)
	}
}

func TestCanTransitionRecommendation(t *testing.T) {
	tests := []struct {
		from    string
		to      string
		allowed bool
	}{
		{model.RecommendationStatusActive, model.RecommendationStatusRead, true},
		{model.RecommendationStatusActive, model.RecommendationStatusResolved, true},
		{model.RecommendationStatusActive, model.RecommendationStatusDismissed, true},
		{model.RecommendationStatusRead, model.RecommendationStatusResolved, true},
		{model.RecommendationStatusRead, model.RecommendationStatusDismissed, true},
		{model.RecommendationStatusRead, model.RecommendationStatusActive, false},
		{model.RecommendationStatusResolved, model.RecommendationStatusDismissed, false},
		{model.RecommendationStatusDismissed, model.RecommendationStatusRead, false},
	}

	for _, tt := range tests {
		if got := canTransitionRecommendation(tt.from, tt.to); got != tt.allowed {
			t.Errorf("canTransitionRecommendation(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}
