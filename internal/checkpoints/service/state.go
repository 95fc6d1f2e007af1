package service

import "fleetshare/pkg/model"

// allowTransition is the handover state machine. Forward moves only; any
// non-terminal state may expire.
var allowTransition = map[string][]string{
	model.CheckpointStatusPending: {
		model.CheckpointStatusScanned,
		model.CheckpointStatusExpired,
	},
	model.CheckpointStatusScanned: {
		model.CheckpointStatusSigned,
		model.CheckpointStatusExpired,
	},
	model.CheckpointStatusSigned: {
		model.CheckpointStatusCompleted,
		model.CheckpointStatusExpired,
	},
	model.CheckpointStatusCompleted: {},
	model.CheckpointStatusExpired:   {},
}

func CanTransition(from, to string) bool {
	allowed, ok := allowTransition[from]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == to {
			return true
		}
	}
	return false
}
