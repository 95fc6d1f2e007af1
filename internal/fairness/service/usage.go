package service

import (
	"context"
	"sort"
	"time"

	apperrors "fleetshare/pkg/errors"
	"fleetshare/pkg/model"
	"fleetshare/pkg/observability"
)

// ComputePeriodRequest bounds one usage or fairness computation.
type ComputePeriodRequest struct {
	GroupID     string    `json:"group_id"`
	VehicleID   string    `json:"vehicle_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

func (r *ComputePeriodRequest) validate() error {
	if r == nil || r.GroupID == "" || r.VehicleID == "" {
		return apperrors.InvalidInput("GroupID and VehicleID are required")
	}
	if r.PeriodStart.IsZero() || r.PeriodEnd.IsZero() {
		return apperrors.InvalidInput("PeriodStart and PeriodEnd are required")
	}
	if !r.PeriodEnd.After(r.PeriodStart) {
		return apperrors.InvalidInput("PeriodEnd must be after PeriodStart")
	}
	return nil
}

// ComputeUsageStats aggregates realized usage per co-owner over the period
// and persists the snapshot append-only.
func (s *fairnessService) ComputeUsageStats(ctx context.Context, req *ComputePeriodRequest) ([]*model.UsageStat, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	stats, _, err := s.aggregateUsage(ctx, req.GroupID, req.VehicleID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}

	if err := s.usageRepo.InsertMany(ctx, stats); err != nil {
		s.cfg.Log.Error("Failed to persist usage snapshot",
			"group_id", req.GroupID,
			"vehicle_id", req.VehicleID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to persist usage snapshot", err)
	}

	observability.FairnessComputations.Inc()
	s.cfg.Log.Info("Usage snapshot computed",
		"group_id", req.GroupID,
		"vehicle_id", req.VehicleID,
		"period_start", req.PeriodStart,
		"period_end", req.PeriodEnd,
		"members", len(stats),
	)
	return stats, nil
}

// aggregateUsage builds per-user usage rows from reservation history. The
// hour contribution of a reservation is clamped to the analysis period.
// Only completed (and, per policy, in_use) reservations count as usage;
// cancelled ones feed the cancellation counters.
func (s *fairnessService) aggregateUsage(ctx context.Context, groupID, vehicleID string, periodStart, periodEnd time.Time) ([]*model.UsageStat, float64, error) {
	usageStatuses := []string{model.ReservationStatusCompleted}
	if s.cfg.CountInUseReservations {
		usageStatuses = append(usageStatuses, model.ReservationStatusInUse)
	}
	statuses := append([]string{model.ReservationStatusCancelled}, usageStatuses...)

	reservations, err := s.reservations.FindForAggregation(ctx, groupID, vehicleID, periodStart, periodEnd, statuses)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to load reservation history", err)
	}

	byUser := make(map[string]*model.UsageStat)
	stat := func(userID string) *model.UsageStat {
		if st, ok := byUser[userID]; ok {
			return st
		}
		st := &model.UsageStat{
			UserID:      userID,
			VehicleID:   vehicleID,
			GroupID:     groupID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		}
		byUser[userID] = st
		return st
	}

	var totalHours float64
	for _, r := range reservations {
		st := stat(r.UserID)

		if r.Status == model.ReservationStatusCancelled {
			st.CancellationCount++
			continue
		}

		hours := clampedHours(r.StartTime, r.EndTime, periodStart, periodEnd)
		st.TotalHoursUsed += hours
		st.TotalKilometers += r.Kilometers
		st.CostIncurred += r.Cost
		st.BookingCount++
		totalHours += hours
	}

	stats := make([]*model.UsageStat, 0, len(byUser))
	for _, st := range byUser {
		if totalHours > 0 {
			st.UsagePercentage = st.TotalHoursUsed / totalHours * 100
		}
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].UserID < stats[j].UserID })

	return stats, totalHours, nil
}

// clampedHours returns the hours of [start, end) that fall inside the
// analysis period.
func clampedHours(start, end, periodStart, periodEnd time.Time) float64 {
	if start.Before(periodStart) {
		start = periodStart
	}
	if end.After(periodEnd) {
		end = periodEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Hours()
}
