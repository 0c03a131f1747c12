package store

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/VibeRoom/internal/domain"
	"github.com/dkeye/VibeRoom/internal/metrics"
)

type writeJob struct {
	op  string
	run func(ctx context.Context) error
}

// Writer persists room changes behind the rooms' backs. Jobs are sharded by
// room id so writes for one room are applied in order. Enqueueing never
// blocks: when a shard is full the job is dropped.
type Writer struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
	shards  []chan writeJob
	wg      *conc.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewWriter(s Store, workers, queue int, timeout time.Duration) *Writer {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 1024
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	w := &Writer{
		store:   s,
		timeout: timeout,
		now:     time.Now,
		shards:  make([]chan writeJob, workers),
		wg:      conc.NewWaitGroup(),
	}
	for i := range w.shards {
		ch := make(chan writeJob, queue)
		w.shards[i] = ch
		w.wg.Go(func() { w.drain(ch) })
	}
	return w
}

func (w *Writer) RoomChanged(r domain.Room) {
	rec := RecordOf(r, w.now())
	w.enqueue(r.ID, writeJob{op: "upsert_room", run: func(ctx context.Context) error {
		return w.store.UpsertRoom(ctx, rec)
	}})
}

func (w *Writer) MessagePosted(msg domain.Message) {
	w.enqueue(msg.RoomID, writeJob{op: "append_message", run: func(ctx context.Context) error {
		return w.store.AppendMessage(ctx, msg)
	}})
}

func (w *Writer) ReactionAdded(r domain.Reaction) {
	w.enqueue(r.RoomID, writeJob{op: "append_reaction", run: func(ctx context.Context) error {
		return w.store.AppendReaction(ctx, r)
	}})
}

// Close stops accepting jobs and waits for queued ones to finish.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for _, ch := range w.shards {
		close(ch)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Writer) enqueue(room domain.RoomID, job writeJob) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.shards[w.shardOf(room)] <- job:
	default:
		metrics.StoreDropped.Inc()
		log.Warn().Str("module", "store.writer").Str("room_id", string(room)).Str("op", job.op).Msg("write queue full, dropped")
	}
}

func (w *Writer) shardOf(room domain.RoomID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(room))
	return int(h.Sum32() % uint32(len(w.shards)))
}

func (w *Writer) drain(ch <-chan writeJob) {
	for job := range ch {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		err := job.run(ctx)
		cancel()
		metrics.StoreLatency.WithLabelValues(job.op).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.StoreErrors.WithLabelValues(job.op).Inc()
			log.Error().
				Err(errors.Join(domain.ErrStoreUnavailable, err)).
				Str("module", "store.writer").
				Str("op", job.op).
				Msg("store write failed")
		}
	}
}
