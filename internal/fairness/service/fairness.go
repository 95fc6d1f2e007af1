package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"fleetshare/internal/fairness/repository"
	"fleetshare/pkg/config"
	apperrors "fleetshare/pkg/errors"
	"fleetshare/pkg/kafka"
	"fleetshare/pkg/model"
	"fleetshare/pkg/observability"

	"github.com/redis/go-redis/v9"
)

type FairnessService interface {
	ComputeUsageStats(ctx context.Context, req *ComputePeriodRequest) ([]*model.UsageStat, error)
	ComputeScores(ctx context.Context, req *ComputePeriodRequest) ([]*model.FairnessScore, error)
	GetScores(ctx context.Context, groupID, vehicleID string) ([]*model.FairnessScore, error)
	GetSummary(ctx context.Context, groupID, vehicleID string) (*model.FairnessSummary, error)
	PriorityFor(ctx context.Context, userID, groupID, vehicleID string) (*model.PriorityLookup, error)
	GenerateRecommendations(ctx context.Context, req *GenerateRequest) ([]*model.Recommendation, error)
	ListRecommendations(ctx context.Context, groupID, status string, limit int, offset int64) ([]*model.Recommendation, int64, error)
	UpdateRecommendationStatus(ctx context.Context, id string, update *model.RecommendationStatusUpdate) (*model.Recommendation, error)
}

// OwnershipLookup is the ownership collaborator seen from the engine.
type OwnershipLookup interface {
	RecordsFor(ctx context.Context, groupID, vehicleID string) ([]model.OwnershipRecord, error)
}

// IdentityLookup resolves display names, best effort.
type IdentityLookup interface {
	ProfileFor(ctx context.Context, userID string) (*model.UserProfile, error)
}

// EventPublisher emits recommendation events.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type fairnessService struct {
	usageRepo    repository.UsageStatRepository
	scoreRepo    repository.FairnessScoreRepository
	recRepo      repository.RecommendationRepository
	reservations repository.ReservationReader
	ownership    OwnershipLookup
	identity     IdentityLookup
	cache        *redis.Client
	events       EventPublisher
	cfg          *config.Config
}

func NewFairnessService(
	usageRepo repository.UsageStatRepository,
	scoreRepo repository.FairnessScoreRepository,
	recRepo repository.RecommendationRepository,
	reservations repository.ReservationReader,
	ownership OwnershipLookup,
	identity IdentityLookup,
	cache *redis.Client,
	events EventPublisher,
	cfg *config.Config,
) FairnessService {
	return &fairnessService{
		usageRepo:    usageRepo,
		scoreRepo:    scoreRepo,
		recRepo:      recRepo,
		reservations: reservations,
		ownership:    ownership,
		identity:     identity,
		cache:        cache,
		events:       events,
		cfg:          cfg,
	}
}

// ComputeScores joins the period's usage with collaborator ownership
// records. Every owner with a positive stake gets exactly one row: owners
// with no usage score against zero, which surfaces them as under-users.
func (s *fairnessService) ComputeScores(ctx context.Context, req *ComputePeriodRequest) ([]*model.FairnessScore, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	records, err := s.ownership.RecordsFor(ctx, req.GroupID, req.VehicleID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.NotFound("Ownership records for this group and vehicle")
	}

	stats, _, err := s.aggregateUsage(ctx, req.GroupID, req.VehicleID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}
	usageByUser := make(map[string]*model.UsageStat, len(stats))
	for _, st := range stats {
		usageByUser[st.UserID] = st
	}

	var scores []*model.FairnessScore
	for _, record := range records {
		if record.Percentage <= 0 {
			continue
		}

		var usagePct float64
		if st, ok := usageByUser[record.UserID]; ok {
			usagePct = st.UsagePercentage
		}

		difference := usagePct - record.Percentage
		score, priority := s.scoreAndPriority(difference)

		scores = append(scores, &model.FairnessScore{
			UserID:              record.UserID,
			VehicleID:           req.VehicleID,
			GroupID:             req.GroupID,
			OwnershipPercentage: record.Percentage,
			UsagePercentage:     usagePct,
			Difference:          difference,
			FairnessScore:       score,
			Priority:            priority,
			PeriodStart:         req.PeriodStart,
			PeriodEnd:           req.PeriodEnd,
		})
	}

	if err := s.scoreRepo.InsertMany(ctx, scores); err != nil {
		s.cfg.Log.Error("Failed to persist fairness scores",
			"group_id", req.GroupID,
			"vehicle_id", req.VehicleID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to persist fairness scores", err)
	}

	observability.FairnessComputations.Inc()
	s.invalidateSummaryCache(ctx, req.GroupID, req.VehicleID)

	s.cfg.Log.Info("Fairness scores computed",
		"group_id", req.GroupID,
		"vehicle_id", req.VehicleID,
		"members", len(scores),
	)
	return scores, nil
}

func (s *fairnessService) GetScores(ctx context.Context, groupID, vehicleID string) ([]*model.FairnessScore, error) {
	if groupID == "" || vehicleID == "" {
		return nil, apperrors.InvalidInput("group_id and vehicle_id are required")
	}

	scores, err := s.scoreRepo.FindLatestPeriod(ctx, groupID, vehicleID)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve fairness scores", err)
	}
	if len(scores) == 0 {
		return nil, apperrors.NotFound("Fairness scores for this group and vehicle")
	}

	return scores, nil
}

// GetSummary serves the group read model, cached in Redis. A nil cache
// client or a cache failure falls through to the database.
func (s *fairnessService) GetSummary(ctx context.Context, groupID, vehicleID string) (*model.FairnessSummary, error) {
	if groupID == "" || vehicleID == "" {
		return nil, apperrors.InvalidInput("group_id and vehicle_id are required")
	}

	cacheKey := summaryCacheKey(groupID, vehicleID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var summary model.FairnessSummary
			if err := json.Unmarshal(cached, &summary); err == nil {
				return &summary, nil
			}
		}
	}

	scores, err := s.GetScores(ctx, groupID, vehicleID)
	if err != nil {
		return nil, err
	}

	summary := &model.FairnessSummary{
		GroupID:      groupID,
		VehicleID:    vehicleID,
		PeriodStart:  scores[0].PeriodStart,
		PeriodEnd:    scores[0].PeriodEnd,
		CalculatedAt: scores[0].CalculatedAt,
	}

	var total float64
	for _, score := range scores {
		member := model.FairnessMember{
			UserID:              score.UserID,
			DisplayName:         s.displayName(ctx, score.UserID),
			OwnershipPercentage: score.OwnershipPercentage,
			UsagePercentage:     score.UsagePercentage,
			Difference:          score.Difference,
			FairnessScore:       score.FairnessScore,
			Priority:            score.Priority,
		}
		summary.Members = append(summary.Members, member)
		total += score.FairnessScore
	}
	summary.GroupFairnessScore = total / float64(len(scores))

	if s.cache != nil {
		if payload, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cfg.FairnessSummaryCacheTTL).Err(); err != nil {
				s.cfg.Log.Warn("Failed to cache fairness summary", "key", cacheKey, "error", err)
			}
		}
	}

	return summary, nil
}

// PriorityFor answers the scheduler with a rolling-window score for one
// user. When the live aggregation fails the last persisted calculation
// answers instead; only with neither does the lookup degrade to normal.
// Booking admission never waits on fairness.
func (s *fairnessService) PriorityFor(ctx context.Context, userID, groupID, vehicleID string) (*model.PriorityLookup, error) {
	if userID == "" || groupID == "" || vehicleID == "" {
		return nil, apperrors.InvalidInput("user_id, group_id and vehicle_id are required")
	}

	degraded := &model.PriorityLookup{
		UserID:    userID,
		VehicleID: vehicleID,
		GroupID:   groupID,
		Priority:  model.PriorityNormal,
		Degraded:  true,
	}

	records, err := s.ownership.RecordsFor(ctx, groupID, vehicleID)
	if err != nil {
		observability.FairnessDegradations.Inc()
		s.cfg.Log.Warn("Priority lookup degraded, ownership unavailable",
			"user_id", userID,
			"vehicle_id", vehicleID,
			"error", err,
		)
		return degraded, nil
	}

	var ownershipPct float64
	for _, record := range records {
		if record.UserID == userID {
			ownershipPct = record.Percentage
			break
		}
	}
	if ownershipPct <= 0 {
		return degraded, nil
	}

	periodEnd := time.Now()
	periodStart := periodEnd.Add(-time.Duration(s.cfg.FairnessWindowDays) * 24 * time.Hour)

	stats, _, err := s.aggregateUsage(ctx, groupID, vehicleID, periodStart, periodEnd)
	if err != nil {
		if snapshot := s.latestScoreSnapshot(ctx, userID, vehicleID); snapshot != nil {
			s.cfg.Log.Warn("Priority lookup served from last persisted score, aggregation failed",
				"user_id", userID,
				"vehicle_id", vehicleID,
				"calculated_at", snapshot.CalculatedAt,
				"error", err,
			)
			score := snapshot.FairnessScore
			return &model.PriorityLookup{
				UserID:    userID,
				VehicleID: vehicleID,
				GroupID:   groupID,
				Priority:  snapshot.Priority,
				Score:     &score,
			}, nil
		}

		observability.FairnessDegradations.Inc()
		s.cfg.Log.Warn("Priority lookup degraded, aggregation failed",
			"user_id", userID,
			"vehicle_id", vehicleID,
			"error", err,
		)
		return degraded, nil
	}

	var usagePct float64
	for _, st := range stats {
		if st.UserID == userID {
			usagePct = st.UsagePercentage
			break
		}
	}

	difference := usagePct - ownershipPct
	score, priority := s.scoreAndPriority(difference)

	return &model.PriorityLookup{
		UserID:    userID,
		VehicleID: vehicleID,
		GroupID:   groupID,
		Priority:  priority,
		Score:     &score,
	}, nil
}

// scoreAndPriority applies the fairness formula: the further usage drifts
// from ownership, the lower the score. Under-users get high priority,
// over-users low.
func (s *fairnessService) scoreAndPriority(difference float64) (float64, string) {
	score := 100 - math.Min(100, math.Abs(difference)*s.cfg.FairnessWeight)

	switch {
	case difference < -s.cfg.PriorityThreshold:
		return score, model.PriorityHigh
	case difference > s.cfg.PriorityThreshold:
		return score, model.PriorityLow
	default:
		return score, model.PriorityNormal
	}
}

// latestScoreSnapshot fetches the user's most recent persisted calculation,
// best effort.
func (s *fairnessService) latestScoreSnapshot(ctx context.Context, userID, vehicleID string) *model.FairnessScore {
	snapshot, err := s.scoreRepo.FindLatestForUser(ctx, userID, vehicleID)
	if err != nil {
		s.cfg.Log.Warn("Failed to load last persisted fairness score",
			"user_id", userID,
			"vehicle_id", vehicleID,
			"error", err,
		)
		return nil
	}
	return snapshot
}

func (s *fairnessService) displayName(ctx context.Context, userID string) string {
	if s.identity == nil {
		return ""
	}
	profile, err := s.identity.ProfileFor(ctx, userID)
	if err != nil || profile == nil {
		// Presentation only: the raw id is an acceptable fallback.
		return ""
	}
	return profile.DisplayName
}

func summaryCacheKey(groupID, vehicleID string) string {
	return fmt.Sprintf("fairness:summary:%s:%s", groupID, vehicleID)
}

func (s *fairnessService) invalidateSummaryCache(ctx context.Context, groupID, vehicleID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, summaryCacheKey(groupID, vehicleID)).Err(); err != nil {
		s.cfg.Log.Warn("Failed to invalidate fairness summary cache",
			"group_id", groupID,
			"vehicle_id", vehicleID,
			"error", err,
		)
	}
}
