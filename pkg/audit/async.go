package audit

import (
	"context"
	"sync"
	"time"
)

// AsyncOptions configures batching for AsyncWriter.
type AsyncOptions struct {
	BufferSize     int           // queued records before Store falls back to a direct write
	BatchSize      int           // records per StoreBatch call
	BatchTimeout   time.Duration // max wait for a partial batch
	StorageTimeout time.Duration // timeout of each StoreBatch call
}

// AsyncWriter batches records into StoreBatch calls on a background goroutine.
// Store blocks until the batch holding the record is written, so callers still
// observe storage errors.
type AsyncWriter struct {
	storage BatchStorage
	queue   chan pending
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	opts    AsyncOptions
}

type pending struct {
	record Record
	result chan error
}

// NewAsyncWriter starts an async writer over storage. Call Close on shutdown
// to flush queued records.
func NewAsyncWriter(storage BatchStorage, opts AsyncOptions) *AsyncWriter {
	if storage == nil {
		panic("audit: batch storage cannot be nil")
	}

	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 100 * time.Millisecond
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}

	w := &AsyncWriter{
		storage: storage,
		queue:   make(chan pending, opts.BufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		opts:    opts,
	}

	w.wg.Add(1)
	go w.worker()

	return w
}

// Store queues r and waits for its batch to be written.
func (w *AsyncWriter) Store(ctx context.Context, r Record) error {
	result := make(chan error, 1)

	select {
	case <-w.done:
		return ErrStorageNotAvailable
	default:
	}

	select {
	case w.queue <- pending{record: r, result: result}:
		select {
		case err := <-result:
			return err
		case <-w.stopped:
			// The worker may have exited before draining this record.
			select {
			case err := <-result:
				return err
			default:
				return ErrStorageNotAvailable
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Buffer full: write synchronously rather than drop the record.
		return w.storage.StoreBatch(ctx, []Record{r})
	}
}

// Query delegates to the underlying storage.
func (w *AsyncWriter) Query(ctx context.Context, c Criteria) ([]Record, error) {
	return w.storage.Query(ctx, c)
}

func (w *AsyncWriter) worker() {
	defer w.wg.Done()
	defer close(w.stopped)

	batch := make([]Record, 0, w.opts.BatchSize)
	results := make([]chan error, 0, w.opts.BatchSize)

	ticker := time.NewTicker(w.opts.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), w.opts.StorageTimeout)
		err := w.storage.StoreBatch(ctx, batch)
		cancel()

		for _, ch := range results {
			ch <- err
		}
		batch = batch[:0]
		results = results[:0]
	}

	for {
		select {
		case p := <-w.queue:
			batch = append(batch, p.record)
			results = append(results, p.result)
			if len(batch) >= w.opts.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-w.done:
			for {
				select {
				case p := <-w.queue:
					batch = append(batch, p.record)
					results = append(results, p.result)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops the worker after flushing queued records. It returns ctx.Err()
// if the flush does not finish in time.
func (w *AsyncWriter) Close(ctx context.Context) error {
	w.once.Do(func() { close(w.done) })

	finished := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
