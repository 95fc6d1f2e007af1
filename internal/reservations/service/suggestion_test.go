package service

import (
	"context"
	"testing"
	"time"

	apperrors "fleetshare/pkg/errors"
	"fleetshare/pkg/model"
)

func busyReservation(start, end time.Time) *model.Reservation {
	return &model.Reservation{
		VehicleID: testVehicleID,
		UserID:    testOtherUser,
		StartTime: start,
		EndTime:   end,
		Status:    model.ReservationStatusBooked,
	}
}

func TestFreeGaps(t *testing.T) {
	from := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	to := from.Add(12 * time.Hour)

	busy := []*model.Reservation{
		busyReservation(from.Add(2*time.Hour), from.Add(4*time.Hour)),
		busyReservation(from.Add(3*time.Hour), from.Add(5*time.Hour)), // overlaps previous
		busyReservation(from.Add(8*time.Hour), from.Add(9*time.Hour)),
	}

	gaps := freeGaps(from, to, busy)

	want := []interval{
		{start: from, end: from.Add(2 * time.Hour)},
		{start: from.Add(5 * time.Hour), end: from.Add(8 * time.Hour)},
		{start: from.Add(9 * time.Hour), end: to},
	}

	if len(gaps) != len(want) {
		t.Fatalf("expected %d gaps, got %d: %+v", len(want), len(gaps), gaps)
	}
	for i := range want {
		if !gaps[i].start.Equal(want[i].start) || !gaps[i].end.Equal(want[i].end) {
			t.Errorf("gap %d: got [%v, %v), want [%v, %v)", i, gaps[i].start, gaps[i].end, want[i].start, want[i].end)
		}
	}
}

func TestFreeGaps_EmptyTimeline(t *testing.T) {
	from := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	to := from.Add(6 * time.Hour)

	gaps := freeGaps(from, to, nil)
	if len(gaps) != 1 || !gaps[0].start.Equal(from) || !gaps[0].end.Equal(to) {
		t.Fatalf("expected single full-window gap, got %+v", gaps)
	}
}

func TestCandidateSlots_SkipsShortGaps(t *testing.T) {
	base := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	gaps := []interval{
		{start: base, end: base.Add(30 * time.Minute)},             // too short
		{start: base.Add(time.Hour), end: base.Add(4 * time.Hour)}, // fits
	}

	slots := candidateSlots(gaps, base.Add(2*time.Hour), time.Hour)

	if len(slots) != 2 {
		t.Fatalf("expected 2 candidates (gap head + desired), got %d: %+v", len(slots), slots)
	}
	if !slots[0].StartTime.Equal(base.Add(time.Hour)) {
		t.Errorf("expected gap-head candidate at %v, got %v", base.Add(time.Hour), slots[0].StartTime)
	}
	if !slots[1].StartTime.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("expected desired-start candidate at %v, got %v", base.Add(2*time.Hour), slots[1].StartTime)
	}
}

func TestRankSlots_NormalPriorityPrefersProximity(t *testing.T) {
	desired := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	slots := []model.TimeSlot{
		{StartTime: desired.Add(-6 * time.Hour)},
		{StartTime: desired.Add(time.Hour)},
		{StartTime: desired.Add(-3 * time.Hour)},
	}

	rankSlots(slots, desired, model.PriorityNormal)

	if !slots[0].StartTime.Equal(desired.Add(time.Hour)) {
		t.Errorf("expected closest slot first, got %v", slots[0].StartTime)
	}
	if !slots[1].StartTime.Equal(desired.Add(-3 * time.Hour)) {
		t.Errorf("expected second-closest slot next, got %v", slots[1].StartTime)
	}
}

func TestRankSlots_HighPriorityPrefersEarliest(t *testing.T) {
	desired := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	slots := []model.TimeSlot{
		{StartTime: desired.Add(time.Hour)},
		{StartTime: desired.Add(-6 * time.Hour)},
		{StartTime: desired.Add(-3 * time.Hour)},
	}

	rankSlots(slots, desired, model.PriorityHigh)

	if !slots[0].StartTime.Equal(desired.Add(-6 * time.Hour)) {
		t.Errorf("high priority expects earliest slot first, got %v", slots[0].StartTime)
	}
}

func TestSuggest_CapsAtMaxSuggestions(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxSuggestions = 3

	now := time.Now()
	var busy []*model.Reservation
	// Many one-hour holes over the horizon produce more candidates than the cap.
	for i := 1; i <= 10; i++ {
		start := now.Add(time.Duration(2*i) * time.Hour)
		busy = append(busy, busyReservation(start, start.Add(time.Hour)))
	}

	repo := &mockReservationRepository{
		findOverlappingFunc: func(ctx context.Context, vehicleID string, start, end time.Time, limit int) ([]*model.Reservation, error) {
			return busy, nil
		},
	}
	svc := newTestService(cfg, repo, newMockLockRepository(), &stubFairness{
		lookup: &model.PriorityLookup{Priority: model.PriorityNormal},
	})

	slots, err := svc.Suggest(context.Background(), &SuggestionRequest{
		UserID:       testUserID,
		GroupID:      testGroupID,
		VehicleID:    testVehicleID,
		DesiredStart: now.Add(5 * time.Hour),
		Duration:     time.Hour,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(slots) != 3 {
		t.Fatalf("expected cap of 3 suggestions, got %d", len(slots))
	}
	for i, slot := range slots {
		if slot.Rank != i+1 {
			t.Errorf("slot %d: expected rank %d, got %d", i, i+1, slot.Rank)
		}
		if !slot.EndTime.Equal(slot.StartTime.Add(time.Hour)) {
			t.Errorf("slot %d: expected requested duration, got %v", i, slot.EndTime.Sub(slot.StartTime))
		}
	}
}

func TestSuggest_RejectsInvalidInput(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(cfg, &mockReservationRepository{}, newMockLockRepository(), nil)

	_, err := svc.Suggest(context.Background(), &SuggestionRequest{
		UserID:       testUserID,
		VehicleID:    testVehicleID,
		DesiredStart: time.Now(),
		Duration:     0,
	})
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for zero duration, got %v", err)
	}

	_, err = svc.Suggest(context.Background(), &SuggestionRequest{
		UserID:       testUserID,
		VehicleID:    testVehicleID,
		DesiredStart: time.Now().Add(100 * 24 * time.Hour),
		Duration:     time.Hour,
	})
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT beyond horizon, got %v", err)
	}
}
