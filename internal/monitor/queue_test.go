package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := range 5 {
		q.Put(i)
	}
	assert.Equal(t, 5, q.Len())

	for want := range 5 {
		got, ok := q.Get(time.Second)
		require.True(t, ok)
		assert.Equal(t, want, got)
		q.Done()
	}
	q.Join()
}

func TestQueueGetTimesOut(t *testing.T) {
	q := NewQueue[string]()
	start := time.Now()
	_, ok := q.Get(20 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueueGetWakesOnPut(t *testing.T) {
	q := NewQueue[string]()
	got := make(chan string, 1)
	go func() {
		v, _ := q.Get(5 * time.Second)
		got <- v
	}()
	time.Sleep(10 * time.Millisecond)
	q.Put("sample")

	select {
	case v := <-got:
		assert.Equal(t, "sample", v)
	case <-time.After(time.Second):
		t.Fatal("Get did not wake on Put")
	}
}

func TestQueueCloseWakesGet(t *testing.T) {
	q := NewQueue[int]()
	q.Put(7)
	q.Close()

	v, ok := q.Get(time.Second)
	require.True(t, ok, "items queued before Close are still delivered")
	assert.Equal(t, 7, v)
	q.Done()

	start := time.Now()
	_, ok = q.Get(5 * time.Second)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestQueueJoinWaitsForDone(t *testing.T) {
	q := NewQueue[int]()
	q.Put(1)
	q.Put(2)

	joined := make(chan struct{})
	go func() {
		q.Join()
		close(joined)
	}()

	for range 2 {
		_, ok := q.Get(time.Second)
		require.True(t, ok)
	}
	select {
	case <-joined:
		t.Fatal("Join returned before items were acknowledged")
	case <-time.After(20 * time.Millisecond):
	}

	q.Done()
	q.Done()
	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("Join did not return after all Done calls")
	}
}

func TestQueueDoneWithoutPutPanics(t *testing.T) {
	q := NewQueue[int]()
	assert.Panics(t, q.Done)
}

func TestQueueManyProducersKeepPerProducerOrder(t *testing.T) {
	type item struct{ producer, seq int }
	const producers, perProducer = 8, 500

	q := NewQueue[item]()
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				q.Put(item{producer: p, seq: i})
			}
		}()
	}

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for range producers * perProducer {
		it, ok := q.Get(5 * time.Second)
		require.True(t, ok)
		require.Equal(t, last[it.producer]+1, it.seq, "producer %d out of order", it.producer)
		last[it.producer] = it.seq
		q.Done()
	}
	wg.Wait()
	q.Join()
	assert.Zero(t, q.Len())
}
