package bridge

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkRecorder struct {
	mu     sync.Mutex
	frames map[string][]string
	block  chan struct{}
}

func newSink() *sinkRecorder {
	return &sinkRecorder{frames: make(map[string][]string)}
}

func (s *sinkRecorder) Frame(id string, audio []byte) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[id] = append(s.frames[id], string(audio))
	return nil
}

func (s *sinkRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.frames {
		n += len(f)
	}
	return n
}

func (s *sinkRecorder) get(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames[id]...)
}

func runBridge(t *testing.T, b *Bridge) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = b.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestWriteStream_AcceptsAndReturnsLength(t *testing.T) {
	sink := newSink()
	b := New(sink, Options{Shards: 4, QueueSize: 8})
	runBridge(t, b)

	n := b.WriteStream([]byte("S1"), make([]byte, 640))
	assert.Equal(t, 640, n)
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, time.Millisecond)
}

func TestWriteStream_InvalidUTF8ProducesNoFrame(t *testing.T) {
	sink := newSink()
	b := New(sink, Options{Shards: 2, QueueSize: 8})
	runBridge(t, b)

	n := b.WriteStream([]byte{0xff, 0xfe, 'S'}, []byte{1, 2, 3})
	assert.Equal(t, StatusRejected, n)
	assert.ErrorIs(t, b.Write([]byte{0xc3, 0x28}, []byte{1}), ErrInvalidID)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, sink.count())
}

func TestWriteStream_NilBuffer(t *testing.T) {
	sink := newSink()
	b := New(sink, Options{})
	runBridge(t, b)

	assert.Equal(t, StatusRejected, b.WriteStream([]byte("S1"), nil))
	assert.Equal(t, 0, b.WriteStream([]byte("S1"), []byte{}), "empty non-nil buffer is accepted")
}

func TestWriteStream_QueuedBeforeRun(t *testing.T) {
	sink := newSink()
	b := New(sink, Options{Shards: 1, QueueSize: 4})

	assert.Equal(t, 2, b.WriteStream([]byte("S1"), []byte{1, 2}))
	assert.Equal(t, 1, b.WriteStream([]byte("S1"), []byte{3}))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, sink.count(), "no worker runs before Run")

	runBridge(t, b)
	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"\x01\x02", "\x03"}, sink.get("S1"))
}

func TestRun_Once(t *testing.T) {
	b := New(newSink(), Options{})
	runBridge(t, b)
	require.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return b.started
	}, time.Second, time.Millisecond)
	assert.Error(t, b.Run(context.Background()))
}

func TestWrite_CopiesBuffer(t *testing.T) {
	sink := newSink()
	sink.block = make(chan struct{})
	b := New(sink, Options{Shards: 1, QueueSize: 4})
	runBridge(t, b)

	buf := []byte("abc")
	require.NoError(t, b.Write([]byte("S1"), buf))
	buf[0] = 'x'
	close(sink.block)

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"abc"}, sink.get("S1"))
}

func TestWrite_FullQueueDrops(t *testing.T) {
	sink := newSink()
	sink.block = make(chan struct{})
	b := New(sink, Options{Shards: 1, QueueSize: 2})
	runBridge(t, b)

	// one frame may already sit in the blocked worker; the queue then fills
	var full bool
	for i := 0; i < 10; i++ {
		if err := b.Write([]byte("S1"), []byte{byte(i)}); err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
			full = true
			break
		}
	}
	assert.True(t, full, "expected queue to fill")
	close(sink.block)
}

func TestWrite_PreservesPerSessionOrder(t *testing.T) {
	sink := newSink()
	b := New(sink, Options{Shards: 4, QueueSize: 1024})
	runBridge(t, b)

	ids := []string{"A", "B", "C"}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				assert.NoError(t, b.Write([]byte(id), []byte(fmt.Sprintf("%03d", i))))
			}
		}(id)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return sink.count() == 300 }, 2*time.Second, time.Millisecond)
	for _, id := range ids {
		got := sink.get(id)
		for i, f := range got {
			assert.Equal(t, fmt.Sprintf("%03d", i), f)
		}
	}
}

func TestRun_DrainsQueuedFrames(t *testing.T) {
	sink := newSink()
	b := New(sink, Options{Shards: 2, QueueSize: 16})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = b.Run(ctx)
		close(done)
	}()

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Write([]byte("S1"), []byte{byte(i)}))
	}
	cancel()
	<-done

	assert.Equal(t, 10, sink.count())
	assert.ErrorIs(t, b.Write([]byte("S1"), []byte{1}), ErrClosed)
	assert.Equal(t, StatusRejected, b.WriteStream([]byte("S1"), []byte{1}))
}
