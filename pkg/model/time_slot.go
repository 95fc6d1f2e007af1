package model

import "time"

// TimeSlot is one ranked alternative window proposed by the scheduler.
type TimeSlot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Rank      int       `json:"rank"`
	Reason    string    `json:"reason,omitempty"`
}

// ReservationDecision is the scheduler's answer to a reservation request.
// Conflicts carries the blocking reservations so a caller can render them.
type ReservationDecision struct {
	Approved    bool           `json:"approved"`
	Reservation *Reservation   `json:"reservation,omitempty"`
	Priority    string         `json:"priority,omitempty"`
	Conflicts   []*Reservation `json:"conflicts,omitempty"`
	Suggestions []TimeSlot     `json:"suggestions,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}
