package observer

// State is the engine's processing state.
type State int

const (
	// Idle has no pending work.
	Idle State = iota
	// ProcessingSync rewrites a small burst inline.
	ProcessingSync
	// Batching has queued nodes and a flush scheduled.
	Batching
	// ProcessingBatched drains the queue from a scheduled flush.
	ProcessingBatched
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ProcessingSync:
		return "processing-sync"
	case Batching:
		return "batching"
	case ProcessingBatched:
		return "processing-batched"
	}
	return "unknown"
}
