// Package bridge turns raw write_stream calls into keeper frames. Frames are
// queued on one of a fixed number of shards chosen by session id, so frames of
// one session stay ordered while a slow engine only delays its own shard.
package bridge

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/hyy20190326/luis-0509/internal/observability/logging"
	"github.com/hyy20190326/luis-0509/internal/observability/metrics"
)

// Status returned to the host for rejected calls.
const StatusRejected = -1

var (
	ErrInvalidID  = errors.New("session id is not valid UTF-8")
	ErrNilBuffer  = errors.New("audio buffer is nil")
	ErrQueueFull  = errors.New("frame queue full")
	ErrClosed     = errors.New("bridge is closed")
)

// Sink consumes frames, normally keeper.Keeper.
type Sink interface {
	Frame(id string, audio []byte) error
}

type Options struct {
	Shards    int
	QueueSize int
}

type frame struct {
	id    string
	audio []byte
}

// Bridge fans frames out to shard workers.
type Bridge struct {
	sink   Sink
	shards []chan frame
	logger zerolog.Logger

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// New returns a bridge that accepts frames at once. Frames written before Run
// wait in their shard queue until the workers start.
func New(sink Sink, opts Options) *Bridge {
	if opts.Shards <= 0 {
		opts.Shards = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	shards := make([]chan frame, opts.Shards)
	for i := range shards {
		shards[i] = make(chan frame, opts.QueueSize)
	}
	return &Bridge{
		sink:   sink,
		shards: shards,
		logger: logging.WithComponent("bridge"),
	}
}

// Run starts the shard workers and blocks until ctx is done. Queued frames
// are delivered before Run returns, after which the bridge rejects writes.
// A bridge runs once.
func (b *Bridge) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return errors.New("bridge already started")
	}
	b.started = true
	b.mu.Unlock()

	for i, ch := range b.shards {
		b.wg.Add(1)
		go b.worker(i, ch)
	}

	<-ctx.Done()

	b.mu.Lock()
	b.closed = true
	for _, ch := range b.shards {
		close(ch)
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// Write validates and enqueues one frame. It copies audio and never blocks.
func (b *Bridge) Write(id []byte, audio []byte) error {
	if !utf8.Valid(id) {
		return ErrInvalidID
	}
	if audio == nil {
		return ErrNilBuffer
	}
	return b.enqueue(string(id), append([]byte(nil), audio...))
}

// WriteStream has the write_stream contract: the frame length on acceptance,
// StatusRejected otherwise. Acceptance says nothing about the session.
func (b *Bridge) WriteStream(id []byte, audio []byte) int {
	if err := b.Write(id, audio); err != nil {
		if !errors.Is(err, ErrQueueFull) {
			b.logger.Warn().Err(err).Msg("write_stream rejected")
		}
		return StatusRejected
	}
	return len(audio)
}

func (b *Bridge) enqueue(id string, audio []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	idx := b.shardFor(id)
	select {
	case b.shards[idx] <- frame{id: id, audio: audio}:
		metrics.DefaultMetrics.BridgeQueueSize.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(b.shards[idx])))
		return nil
	default:
		metrics.DefaultMetrics.RecordFrameDropped()
		b.logger.Warn().Str("session", id).Int("shard", idx).Msg("frame dropped, queue full")
		return ErrQueueFull
	}
}

func (b *Bridge) shardFor(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % uint32(len(b.shards)))
}

func (b *Bridge) worker(idx int, ch <-chan frame) {
	defer b.wg.Done()
	label := strconv.Itoa(idx)

	for f := range ch {
		metrics.DefaultMetrics.BridgeQueueSize.WithLabelValues(label).Set(float64(len(ch)))
		if err := b.sink.Frame(f.id, f.audio); err != nil {
			b.logger.Debug().Err(err).Str("session", f.id).Msg("frame not delivered")
		}
	}
}
