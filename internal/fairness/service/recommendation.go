package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	fairnesserrors "fleetshare/internal/fairness/errors"
	apperrors "fleetshare/pkg/errors"
	"fleetshare/pkg/kafka"
	"fleetshare/pkg/model"
	"fleetshare/pkg/observability"
)

// GenerateRequest asks for recommendations over the latest computed scores.
type GenerateRequest struct {
	GroupID   string `json:"group_id"`
	VehicleID string `json:"vehicle_id"`
}

// recommendationTransitions: consumers acknowledge, then settle. read_at is
// stamped on the first move out of active.
var recommendationTransitions = map[string][]string{
	model.RecommendationStatusActive: {
		model.RecommendationStatusRead,
		model.RecommendationStatusResolved,
		model.RecommendationStatusDismissed,
	},
	model.RecommendationStatusRead: {
		model.RecommendationStatusResolved,
		model.RecommendationStatusDismissed,
	},
	model.RecommendationStatusResolved:  {},
	model.RecommendationStatusDismissed: {},
}

func canTransitionRecommendation(from, to string) bool {
	for _, t := range recommendationTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// GenerateRecommendations runs the deterministic rule set over the latest
// fairness calculation. Per member at most one recommendation is emitted,
// with precedence critical > warning > info.
func (s *fairnessService) GenerateRecommendations(ctx context.Context, req *GenerateRequest) ([]*model.Recommendation, error) {
	if req == nil || req.GroupID == "" || req.VehicleID == "" {
		return nil, apperrors.InvalidInput("GroupID and VehicleID are required")
	}

	calculations, err := s.scoreRepo.FindRecentCalculations(ctx, req.GroupID, req.VehicleID, 2)
	if err != nil {
		return nil, apperrors.Internal("Failed to load fairness calculations", err)
	}
	if len(calculations) == 0 || len(calculations[0]) == 0 {
		return nil, apperrors.NotFound("Fairness scores for this group and vehicle")
	}

	latest := calculations[0]
	var previous map[string]*model.FairnessScore
	if len(calculations) > 1 {
		previous = make(map[string]*model.FairnessScore, len(calculations[1]))
		for _, score := range calculations[1] {
			previous[score.UserID] = score
		}
	}

	cancellationRates, err := s.cancellationRates(ctx, req.GroupID, req.VehicleID, latest[0].PeriodStart, latest[0].PeriodEnd)
	if err != nil {
		s.cfg.Log.Warn("Cancellation rates unavailable for recommendation run",
			"group_id", req.GroupID,
			"error", err,
		)
		cancellationRates = nil
	}

	var recommendations []*model.Recommendation
	for _, score := range latest {
		rec := s.recommendationFor(score, previous, cancellationRates)
		if rec == nil {
			continue
		}
		rec.GroupID = req.GroupID
		rec.VehicleID = req.VehicleID
		rec.Status = model.RecommendationStatusActive
		rec.PeriodStart = score.PeriodStart
		rec.PeriodEnd = score.PeriodEnd

		if err := s.recRepo.Create(ctx, rec); err != nil {
			return nil, apperrors.Internal("Failed to persist recommendation", err)
		}

		observability.RecommendationsEmitted.WithLabelValues(rec.Severity).Inc()
		s.publishRecommendation(ctx, rec)
		recommendations = append(recommendations, rec)
	}

	s.cfg.Log.Info("Recommendation run completed",
		"group_id", req.GroupID,
		"vehicle_id", req.VehicleID,
		"emitted", len(recommendations),
	)
	return recommendations, nil
}

// recommendationFor evaluates one member against the rule set.
func (s *fairnessService) recommendationFor(score *model.FairnessScore, previous map[string]*model.FairnessScore, cancellationRates map[string]float64) *model.Recommendation {
	breach := math.Abs(score.Difference) > s.cfg.ImbalanceWarnThreshold

	if breach && cancellationRates != nil {
		if rate, ok := cancellationRates[score.UserID]; ok && rate >= s.cfg.CriticalCancellationRate {
			return &model.Recommendation{
				Type:         model.RecommendationTypeCancellations,
				Title:        "Frequent cancellations are distorting usage",
				Description:  fmt.Sprintf("This member cancelled %.0f%% of their bookings while their usage deviates %.1f points from their ownership share.", rate*100, math.Abs(score.Difference)),
				Severity:     model.SeverityCritical,
				TargetUserID: score.UserID,
			}
		}
	}

	if breach {
		if prev, ok := previous[score.UserID]; ok && math.Abs(prev.Difference) > s.cfg.ImbalanceWarnThreshold {
			return &model.Recommendation{
				Type:         model.RecommendationTypeImbalance,
				Title:        "Sustained usage imbalance",
				Description:  fmt.Sprintf("Usage has deviated from the ownership share by more than %.0f points for two consecutive periods (currently %.1f).", s.cfg.ImbalanceWarnThreshold, score.Difference),
				Severity:     model.SeverityWarning,
				TargetUserID: score.UserID,
			}
		}
	}

	if score.Priority == model.PriorityHigh {
		return &model.Recommendation{
			Type:         model.RecommendationTypeUnderuse,
			Title:        "Vehicle time available",
			Description:  fmt.Sprintf("This member used %.1f%% of the vehicle against a %.1f%% ownership share. Consider booking upcoming windows.", score.UsagePercentage, score.OwnershipPercentage),
			Severity:     model.SeverityInfo,
			TargetUserID: score.UserID,
		}
	}

	return nil
}

func (s *fairnessService) cancellationRates(ctx context.Context, groupID, vehicleID string, periodStart, periodEnd time.Time) (map[string]float64, error) {
	stats, err := s.usageRepo.FindByPeriod(ctx, groupID, vehicleID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		// No persisted snapshot for the score period; aggregate directly.
		stats, _, err = s.aggregateUsage(ctx, groupID, vehicleID, periodStart, periodEnd)
		if err != nil {
			return nil, err
		}
	}

	rates := make(map[string]float64, len(stats))
	for _, st := range stats {
		rates[st.UserID] = st.CancellationRate()
	}
	return rates, nil
}

func (s *fairnessService) ListRecommendations(ctx context.Context, groupID, status string, limit int, offset int64) ([]*model.Recommendation, int64, error) {
	if groupID == "" {
		return nil, 0, apperrors.InvalidInput("group_id is required")
	}

	var count int64
	var recs []*model.Recommendation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.recRepo.CountByGroup(ctx, groupID, status)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count recommendations", "group_id", groupID, "error", errCount)
			errCount = apperrors.Internal("Failed to count recommendations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		recs, errFind = s.recRepo.FindByGroup(ctx, groupID, status, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list recommendations", "group_id", groupID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve recommendations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return recs, count, nil
}

// UpdateRecommendationStatus applies a consumer acknowledgement. The CAS
// filter carries the observed status so racing consumers resolve to one
// winner.
func (s *fairnessService) UpdateRecommendationStatus(ctx context.Context, id string, update *model.RecommendationStatusUpdate) (*model.Recommendation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Recommendation ID cannot be empty")
	}
	if update == nil || (update.Status != model.RecommendationStatusRead &&
		update.Status != model.RecommendationStatusResolved &&
		update.Status != model.RecommendationStatusDismissed) {
		return nil, apperrors.InvalidInput("status must be one of: read, resolved, dismissed")
	}

	existing, err := s.recRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, fairnesserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Recommendation", id)
		}
		if errors.Is(err, fairnesserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid recommendation ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve recommendation", err)
	}

	if !canTransitionRecommendation(existing.Status, update.Status) {
		return nil, apperrors.InvalidState(
			fmt.Sprintf("Recommendation cannot move to %s", update.Status),
			existing.Status,
		)
	}

	stampReadAt := existing.Status == model.RecommendationStatusActive
	matched, err := s.recRepo.UpdateStatus(ctx, id, []string{existing.Status}, update.Status, stampReadAt)
	if err != nil {
		return nil, apperrors.Internal("Failed to update recommendation status", err)
	}
	if matched == 0 {
		// Lost a race with another consumer; report the fresh state.
		fresh, findErr := s.recRepo.FindByID(ctx, id)
		if findErr != nil {
			return nil, apperrors.Internal("Failed to check recommendation state", findErr)
		}
		return nil, apperrors.InvalidState(
			fmt.Sprintf("Recommendation cannot move to %s", update.Status),
			fresh.Status,
		)
	}

	updated, err := s.recRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("Failed to reload recommendation", err)
	}

	s.cfg.Log.Info("Recommendation status updated", "id", id, "status", update.Status)
	return updated, nil
}

func (s *fairnessService) publishRecommendation(ctx context.Context, rec *model.Recommendation) {
	if s.events == nil {
		return
	}

	msg := kafka.NewMessage().
		WithKey(rec.GroupID).
		WithEventType(kafka.EventRecommendationCreated).
		WithSource("fairness").
		WithValue(kafka.RecommendationEvent{
			RecommendationID: rec.ID,
			GroupID:          rec.GroupID,
			Type:             rec.Type,
			Severity:         rec.Severity,
			TargetUserID:     rec.TargetUserID,
			OccurredAt:       time.Now().UTC(),
		}).
		Build()

	if err := s.events.Publish(ctx, msg); err != nil {
		s.cfg.Log.Warn("Failed to publish recommendation event",
			"recommendation_id", rec.ID,
			"error", err,
		)
	}
}
