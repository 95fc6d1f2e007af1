package service

import "fleetshare/pkg/model"

// allowTransition is the reservation status graph. A status missing from
// the map is terminal.
var allowTransition = map[string][]string{
	model.ReservationStatusBooked: {
		model.ReservationStatusInUse,
		model.ReservationStatusCancelled,
	},
	model.ReservationStatusInUse: {
		model.ReservationStatusCompleted,
		model.ReservationStatusCancelled,
	},
	model.ReservationStatusCompleted: {},
	model.ReservationStatusCancelled: {},
}

// CanTransition reports whether a reservation may move from one status to
// another.
func CanTransition(from, to string) bool {
	targets, ok := allowTransition[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no transition leaves the given status.
func IsTerminalStatus(status string) bool {
	return len(allowTransition[status]) == 0
}
