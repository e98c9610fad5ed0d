package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type msgItem struct {
	data string
}

func TestSliceQueue(t *testing.T) {
	assert := assert.New(t)

	t.Run("Empty Queue", func(t *testing.T) {
		q := NewSliceQueue[*msgItem](1)

		assert.True(q.IsEmpty())
		assert.Equal(0, q.Length())

		item, ok := q.Dequeue()
		assert.False(ok)
		assert.Nil(item)
	})

	t.Run("Enqueue and Dequeue", func(t *testing.T) {
		q := NewSliceQueue[*msgItem](1)

		item1 := &msgItem{"data1"}
		q.Enqueue(item1)
		assert.False(q.IsEmpty())
		assert.Equal(1, q.Length())

		item2 := &msgItem{"data2"}
		q.Enqueue(item2)
		assert.Equal(2, q.Length())

		got, ok := q.Dequeue()
		assert.True(ok)
		assert.Same(item1, got)
		assert.Equal(1, q.Length())

		got, ok = q.Dequeue()
		assert.True(ok)
		assert.Same(item2, got)
		assert.True(q.IsEmpty())

		_, ok = q.Dequeue()
		assert.False(ok)
	})

	t.Run("Interleaved keeps FIFO order", func(t *testing.T) {
		q := NewSliceQueue[int](4)

		next := 0
		for i := 0; i < 100; i++ {
			q.Enqueue(i)
			if i%3 == 0 {
				v, ok := q.Dequeue()
				assert.True(ok)
				assert.Equal(next, v)
				next++
			}
		}

		for !q.IsEmpty() {
			v, _ := q.Dequeue()
			assert.Equal(next, v)
			next++
		}
		assert.Equal(100, next)
	})

	t.Run("Reset", func(t *testing.T) {
		q := NewSliceQueue[string](2)
		q.Enqueue("a")
		q.Enqueue("b")
		q.Reset()

		assert.True(q.IsEmpty())
		assert.Equal(0, q.Length())
	})
}
