package completion

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaneQueue_HighLaneDrainsFirst(t *testing.T) {
	q := newLaneQueue(10, 1)
	q.push(Event{QuizID: "n1"})
	q.push(Event{QuizID: "h1", Priority: PriorityHigh})
	q.push(Event{QuizID: "n2"})
	q.push(Event{QuizID: "h2", Priority: PriorityHigh})

	got := q.pop(3)
	require.Len(t, got, 3)
	assert.Equal(t, "h1", got[0].QuizID)
	assert.Equal(t, "h2", got[1].QuizID)
	assert.Equal(t, "n1", got[2].QuizID)
	assert.Equal(t, 1, q.len())
}

func TestLaneQueue_DropsOldestAcrossLanes(t *testing.T) {
	q := newLaneQueue(4, 2)
	q.push(Event{QuizID: "n1"})
	q.push(Event{QuizID: "h1", Priority: PriorityHigh})
	q.push(Event{QuizID: "n2"})
	q.push(Event{QuizID: "h2", Priority: PriorityHigh})

	dropped := q.push(Event{QuizID: "n3"})
	assert.Equal(t, 2, dropped)

	var ids []string
	for _, ev := range q.snapshot() {
		ids = append(ids, ev.QuizID)
	}
	assert.Equal(t, []string{"h2", "n2", "n3"}, ids)
}

func TestLaneQueue_PopMoreThanQueued(t *testing.T) {
	q := newLaneQueue(100, 10)
	for i := 0; i < 5; i++ {
		q.push(Event{QuizID: fmt.Sprintf("q%d", i)})
	}

	assert.Len(t, q.pop(100), 5)
	assert.Nil(t, q.pop(100))
	assert.Equal(t, 0, q.len())
}
