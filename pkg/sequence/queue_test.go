package sequence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDequeueHighestPriorityFirst(t *testing.T) {
	q := NewPriorityQueue[string]()
	q.Enqueue("low", 1)
	q.Enqueue("high", 9)
	q.Enqueue("mid", 5)

	for _, want := range []string{"high", "mid", "low"} {
		got, ok := q.Dequeue()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok := q.Dequeue()
	require.False(t, ok)
}

func TestPeekDoesNotRemove(t *testing.T) {
	q := NewPriorityQueue[int]()

	_, ok := q.Peek()
	require.False(t, ok)

	q.Enqueue(42, 3)
	got, ok := q.Peek()
	require.True(t, ok)
	require.Equal(t, 42, got)
	require.Equal(t, 1, q.Len())
}

func TestUpdateReprioritizes(t *testing.T) {
	q := NewPriorityQueue[string]()
	item := q.Enqueue("sleeper", 0)
	q.Enqueue("steady", 5)

	q.Update(item, "woken", 10)

	got, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, "woken", got)
}

func TestLenAndIsEmpty(t *testing.T) {
	q := NewPriorityQueue[int]()
	require.True(t, q.IsEmpty())

	q.Enqueue(1, 1)
	q.Enqueue(2, 2)
	require.Equal(t, 2, q.Len())
	require.False(t, q.IsEmpty())

	q.Dequeue()
	q.Dequeue()
	require.True(t, q.IsEmpty())
}
