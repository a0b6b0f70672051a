package completion

import "time"

type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "normal"
}

// Submission is a completed quiz as reported by the caller.
type Submission struct {
	QuizID  string
	Phone   string
	UserID  string
	Email   string
	Answers map[string]interface{}
}

// Event is an accepted submission waiting in the queue.
type Event struct {
	QuizID     string
	Phone      string
	UserID     string
	Email      string
	Answers    map[string]interface{}
	EnqueuedAt time.Time
	Priority   Priority

	seq uint64
}
