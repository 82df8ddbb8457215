package model

// ProcessState is the lifecycle state of a supervised subprocess.
type ProcessState int

const (
	ProcessNotStarted ProcessState = iota
	ProcessRunning
	ProcessStopped
	ProcessFailed
)

func (s ProcessState) String() string {
	switch s {
	case ProcessNotStarted:
		return "not_started"
	case ProcessRunning:
		return "running"
	case ProcessStopped:
		return "stopped"
	case ProcessFailed:
		return "failed"
	default:
		return "unknown"
	}
}
