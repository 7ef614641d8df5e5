package kafka

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

// scriptedReader hands out msgs in order, then blocks until ctx is done.
type scriptedReader struct {
	mu      sync.Mutex
	msgs    []kafka.Message
	commits map[int][]int64
	closed  bool
}

func newScriptedReader(msgs ...kafka.Message) *scriptedReader {
	return &scriptedReader{msgs: msgs, commits: map[int][]int64{}}
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.commits[m.Partition] = append(r.commits[m.Partition], m.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *scriptedReader) committed(partition int) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.commits[partition]...)
}

func (r *scriptedReader) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, offs := range r.commits {
		n += len(offs)
	}
	return n
}

func startConsumer(t *testing.T, r *scriptedReader, workers int, h Handler) (context.CancelFunc, <-chan error) {
	t.Helper()
	c := NewConsumerWithReader(r, workers, nil)
	c.backoff, c.maxBackoff = time.Millisecond, 4*time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()
	return cancel, done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestConsumerRetriesBeforeCommitting(t *testing.T) {
	r := newScriptedReader(
		kafka.Message{Partition: 0, Offset: 9},
		kafka.Message{Partition: 0, Offset: 10},
		kafka.Message{Partition: 1, Offset: 3},
	)
	var mu sync.Mutex
	attempts := map[int64]int{}
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[m.Offset]++
		if m.Offset == 9 && attempts[m.Offset] < 3 {
			return errors.New("db down")
		}
		return nil
	}

	cancel, done := startConsumer(t, r, 2, h)
	waitFor(t, func() bool { return r.total() == 3 })
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if got := r.committed(0); !reflect.DeepEqual(got, []int64{9, 10}) {
		t.Fatalf("partition 0 commits = %v, want [9 10]", got)
	}
	if got := r.committed(1); !reflect.DeepEqual(got, []int64{3}) {
		t.Fatalf("partition 1 commits = %v, want [3]", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts[9] != 3 {
		t.Fatalf("offset 9 handled %d times, want 3", attempts[9])
	}
	if !r.closed {
		t.Fatal("reader not closed")
	}
}

func TestConsumerNeverCommitsPastFailure(t *testing.T) {
	r := newScriptedReader(
		kafka.Message{Partition: 0, Offset: 5},
		kafka.Message{Partition: 0, Offset: 6},
	)
	var mu sync.Mutex
	calls := 0
	h := func(_ context.Context, m kafka.Message) error {
		if m.Offset == 5 {
			mu.Lock()
			calls++
			mu.Unlock()
			return errors.New("db down")
		}
		return nil
	}

	cancel, done := startConsumer(t, r, 4, h)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3
	})
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := r.committed(0); len(got) != 0 {
		t.Fatalf("committed %v while offset 5 was still failing", got)
	}
}

func TestLaneForPinsPartitions(t *testing.T) {
	for p := 0; p < 10; p++ {
		if got := laneFor(p, 3); got != p%3 {
			t.Fatalf("partition %d -> lane %d", p, got)
		}
	}
	if laneFor(4, 1) != 0 {
		t.Fatal("single worker must take every partition")
	}
}
