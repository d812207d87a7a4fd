package tads3ls

// State is the coordinator's position in a parse run.
type State int

const (
	StateIdle State = iota
	StateConfigResolved
	StatePreprocessed
	StateOrdered
	StateCacheSeeded
	StateDispatching
	StateDraining
	StateFinalizing
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateConfigResolved: "config-resolved",
	StatePreprocessed:   "preprocessed",
	StateOrdered:        "ordered",
	StateCacheSeeded:    "cache-seeded",
	StateDispatching:    "dispatching",
	StateDraining:       "draining",
	StateFinalizing:     "finalizing",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
