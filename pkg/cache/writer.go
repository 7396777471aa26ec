package cache

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/entsync/entsync/pkg/log"
	"github.com/entsync/entsync/pkg/metrics"
)

type writeJob struct {
	name    string
	entry   *Entry
	payload interface{}
}

// Writer persists cache entries on a bounded pool of background workers so
// the calling path never blocks on file I/O. The contract is best-effort:
// callers must not assume a write has completed until Flush returns, and a
// process exiting without Flush may lose the most recent writes.
type Writer struct {
	jobs   chan writeJob
	wg     sync.WaitGroup
	busy   sync.WaitGroup
	once   sync.Once
	logger zerolog.Logger
}

// NewWriter starts a writer with the given number of workers. Zero or
// negative means one worker.
func NewWriter(workers int) *Writer {
	if workers < 1 {
		workers = 1
	}
	w := &Writer{
		jobs:   make(chan writeJob, 64),
		logger: log.WithComponent("cache-writer"),
	}
	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
	return w
}

func (w *Writer) run() {
	defer w.wg.Done()
	for job := range w.jobs {
		timer := metrics.NewTimer()
		if err := job.entry.Write(job.payload); err != nil {
			// Best effort only; the cache is rebuildable from the server.
			w.logger.Error().Err(err).Str("path", job.entry.Path()).Msg("background cache write failed")
		}
		timer.ObserveDurationVec(metrics.CacheWriteDuration, job.name)
		w.busy.Done()
	}
}

// Enqueue schedules a background write of payload to entry, attributed to
// the named cache in metrics. When the queue is full the write happens
// inline instead of blocking behind it.
func (w *Writer) Enqueue(name string, entry *Entry, payload interface{}) {
	w.busy.Add(1)
	select {
	case w.jobs <- writeJob{name: name, entry: entry, payload: payload}:
	default:
		defer w.busy.Done()
		if err := entry.Write(payload); err != nil {
			w.logger.Error().Err(err).Str("path", entry.Path()).Msg("inline cache write failed")
		}
	}
}

// Flush blocks until every write enqueued so far has completed. This is the
// explicit durability barrier for callers that need the disk state settled
// before exiting.
func (w *Writer) Flush() {
	w.busy.Wait()
}

// Close flushes outstanding writes and stops the workers. The writer must
// not be used afterwards.
func (w *Writer) Close() {
	w.once.Do(func() {
		w.busy.Wait()
		close(w.jobs)
		w.wg.Wait()
	})
}
