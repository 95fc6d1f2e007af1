package service

import (
	"context"
	"sort"
	"time"

	apperrors "fleetshare/pkg/errors"
	"fleetshare/pkg/model"
	"fleetshare/pkg/observability"
)

// maxBusyScan bounds how many reservations the suggestion builder loads
// when reconstructing the busy timeline.
const maxBusyScan = 500

// SuggestionRequest asks for alternative windows near a desired start.
type SuggestionRequest struct {
	UserID       string
	GroupID      string
	VehicleID    string
	DesiredStart time.Time
	Duration     time.Duration
}

type interval struct {
	start time.Time
	end   time.Time
}

// Suggest proposes up to MaxSuggestions free windows of the requested
// duration inside the configured horizon. High-priority requesters get the
// earliest windows; everyone else gets windows closest to the desired start.
func (s *reservationService) Suggest(ctx context.Context, req *SuggestionRequest) ([]model.TimeSlot, error) {
	if req == nil || req.VehicleID == "" {
		return nil, apperrors.InvalidInput("VehicleID is required")
	}
	if req.Duration <= 0 {
		return nil, apperrors.InvalidInput("Duration must be positive")
	}

	priority := s.lookupPriority(ctx, req.UserID, req.GroupID, req.VehicleID)
	return s.buildSuggestions(ctx, req, priority)
}

func (s *reservationService) suggestionsForConflict(ctx context.Context, reservation *model.Reservation, priority string) []model.TimeSlot {
	req := &SuggestionRequest{
		UserID:       reservation.UserID,
		GroupID:      reservation.GroupID,
		VehicleID:    reservation.VehicleID,
		DesiredStart: reservation.StartTime,
		Duration:     reservation.EndTime.Sub(reservation.StartTime),
	}

	suggestions, err := s.buildSuggestions(ctx, req, priority)
	if err != nil {
		s.cfg.Log.Warn("Failed to build slot suggestions",
			"vehicle_id", reservation.VehicleID,
			"error", err,
		)
		return nil
	}
	return suggestions
}

func (s *reservationService) buildSuggestions(ctx context.Context, req *SuggestionRequest, priority string) ([]model.TimeSlot, error) {
	// The horizon anchors on now, not on the desired start, so windows
	// earlier than the requested one stay in play.
	now := time.Now()
	windowStart := now
	windowEnd := now.Add(time.Duration(s.cfg.SuggestionHorizonDays) * 24 * time.Hour)

	if !req.DesiredStart.Before(windowEnd) {
		return nil, apperrors.InvalidInput("Desired start is beyond the suggestion horizon")
	}

	busy, err := s.repo.FindActiveOverlapping(ctx, req.VehicleID, windowStart, windowEnd, maxBusyScan)
	if err != nil {
		return nil, apperrors.Internal("Failed to load vehicle timeline", err)
	}

	gaps := freeGaps(windowStart, windowEnd, busy)
	candidates := candidateSlots(gaps, req.DesiredStart, req.Duration)

	rankSlots(candidates, req.DesiredStart, priority)

	if len(candidates) > s.cfg.MaxSuggestions {
		candidates = candidates[:s.cfg.MaxSuggestions]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}

	observability.SlotSuggestions.Add(float64(len(candidates)))
	return candidates, nil
}

// freeGaps computes the complement of the busy timeline over [from, to).
// Busy intervals arrive sorted by start time and may overlap each other.
func freeGaps(from, to time.Time, busy []*model.Reservation) []interval {
	var gaps []interval
	cursor := from

	for _, r := range busy {
		if r.StartTime.After(cursor) {
			gaps = append(gaps, interval{start: cursor, end: r.StartTime})
		}
		if r.EndTime.After(cursor) {
			cursor = r.EndTime
		}
	}

	if cursor.Before(to) {
		gaps = append(gaps, interval{start: cursor, end: to})
	}

	return gaps
}

// candidateSlots places one slot at the head of each sufficiently long gap,
// plus a slot at the desired start when it fits inside a gap.
func candidateSlots(gaps []interval, desiredStart time.Time, duration time.Duration) []model.TimeSlot {
	var slots []model.TimeSlot

	for _, g := range gaps {
		if g.end.Sub(g.start) < duration {
			continue
		}

		slots = append(slots, model.TimeSlot{
			StartTime: g.start,
			EndTime:   g.start.Add(duration),
			Reason:    "earliest free window",
		})

		if desiredStart.After(g.start) && !desiredStart.Add(duration).After(g.end) {
			slots = append(slots, model.TimeSlot{
				StartTime: desiredStart,
				EndTime:   desiredStart.Add(duration),
				Reason:    "matches requested start",
			})
		}
	}

	return slots
}

// rankSlots orders candidates in place. High priority favors the earliest
// start; otherwise proximity to the desired start wins, with earlier start
// breaking ties.
func rankSlots(slots []model.TimeSlot, desiredStart time.Time, priority string) {
	sort.SliceStable(slots, func(i, j int) bool {
		if priority == model.PriorityHigh {
			return slots[i].StartTime.Before(slots[j].StartTime)
		}

		di := absDuration(slots[i].StartTime.Sub(desiredStart))
		dj := absDuration(slots[j].StartTime.Sub(desiredStart))
		if di != dj {
			return di < dj
		}
		return slots[i].StartTime.Before(slots[j].StartTime)
	})
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
