package arrow_client

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-testfloat/internal/logger"
	"github.com/23skdu/longbow-testfloat/internal/metrics"
	"github.com/23skdu/longbow-testfloat/internal/verify"
)

// DefaultBatchSize is the number of rows buffered before a flush.
const DefaultBatchSize = 1024

// DefaultDrainTimeout bounds each write made after the sink's context is
// canceled, so records found before an interrupt still reach the server.
const DefaultDrainTimeout = 10 * time.Second

// queueDepth is the number of full batches waiting for the writer before
// Mismatch blocks.
const queueDepth = 64

// Sink collects error records from any number of concurrent runs and
// writes them as record batches to an Arrow IPC file, a Flight server, or
// both. A single writer goroutine does all I/O, so reporters only touch
// the in-memory buffer.
type Sink struct {
	ctx          context.Context
	mem          memory.Allocator
	batchSize    int
	drainTimeout time.Duration

	file     *ipc.FileWriter
	uploader Uploader
	batches  chan []Row
	done     chan struct{}
	// sendMu is held for reading while sending to batches and for writing
	// while closing it.
	sendMu sync.RWMutex

	mu      sync.Mutex
	pending []Row
	closed  bool
	written int64
	err     error
}

type SinkOption func(*Sink)

func WithAllocator(mem memory.Allocator) SinkOption {
	return func(s *Sink) { s.mem = mem }
}

func WithBatchSize(n int) SinkOption {
	return func(s *Sink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithDrainTimeout(d time.Duration) SinkOption {
	return func(s *Sink) {
		if d > 0 {
			s.drainTimeout = d
		}
	}
}

// NewSink returns a sink writing to file and uploading through up. Either
// may be nil. The sink does not close file or up.
func NewSink(ctx context.Context, file io.Writer, up Uploader, opts ...SinkOption) (*Sink, error) {
	s := &Sink{
		ctx:          ctx,
		mem:          memory.NewGoAllocator(),
		batchSize:    DefaultBatchSize,
		drainTimeout: DefaultDrainTimeout,
		uploader:     up,
		batches:      make(chan []Row, queueDepth),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if file != nil {
		w, err := ipc.NewFileWriter(file, ipc.WithSchema(ErrorSchema), ipc.WithAllocator(s.mem))
		if err != nil {
			return nil, fmt.Errorf("failed to create IPC writer: %w", err)
		}
		s.file = w
	}
	go s.writer()
	return s, nil
}

// ForRun returns a reporter that tags the run's errors with runID and mode.
func (s *Sink) ForRun(runID, mode string) verify.Reporter {
	return &runSink{sink: s, runID: runID, mode: mode}
}

// Written returns the number of rows written so far.
func (s *Sink) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Err returns the first write or upload failure.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Sink) add(r Row) {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, r)
	var batch []Row
	if len(s.pending) >= s.batchSize {
		batch = s.takeLocked()
	}
	s.mu.Unlock()
	s.enqueue(batch)
}

// Flush hands any buffered rows to the writer. It does not wait for them
// to be written.
func (s *Sink) Flush() {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	batch := s.takeLocked()
	s.mu.Unlock()
	s.enqueue(batch)
}

func (s *Sink) takeLocked() []Row {
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending
	s.pending = nil
	return batch
}

func (s *Sink) enqueue(batch []Row) {
	if len(batch) > 0 {
		s.batches <- batch
	}
}

func (s *Sink) writer() {
	defer close(s.done)
	for batch := range s.batches {
		s.write(batch)
	}
}

func (s *Sink) write(rows []Row) {
	rec := BuildRecord(s.mem, rows)
	defer rec.Release()
	n := len(rows)

	if s.file != nil {
		err := s.file.Write(rec)
		metrics.RecordArrowWrite("ipc", n, err)
		s.fail("ipc", err)
	}
	if s.uploader != nil {
		ctx, cancel := s.uploadContext()
		err := s.uploader.Upload(ctx, rec)
		cancel()
		metrics.RecordArrowWrite("flight", n, err)
		s.fail("flight", err)
	}

	s.mu.Lock()
	s.written += int64(n)
	s.mu.Unlock()
}

// uploadContext detaches from a canceled sink context with a fresh bound.
func (s *Sink) uploadContext() (context.Context, context.CancelFunc) {
	if s.ctx.Err() == nil {
		return s.ctx, func() {}
	}
	return context.WithTimeout(context.WithoutCancel(s.ctx), s.drainTimeout)
}

func (s *Sink) fail(sink string, err error) {
	if err == nil {
		return
	}
	logger.Log.Error("failed to write error records", "sink", sink, "error", err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = fmt.Errorf("%s sink: %w", sink, err)
	}
}

// Close writes buffered rows, waits for the writer to drain, and finishes
// the IPC file footer. Rows reported after Close are dropped.
func (s *Sink) Close() error {
	s.sendMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.sendMu.Unlock()
		<-s.done
		return s.Err()
	}
	s.closed = true
	batch := s.takeLocked()
	s.mu.Unlock()

	s.enqueue(batch)
	close(s.batches)
	s.sendMu.Unlock()
	<-s.done

	if s.file != nil {
		if err := s.file.Close(); err != nil {
			s.fail("ipc", err)
		}
		s.file = nil
	}
	return s.Err()
}

type runSink struct {
	sink  *Sink
	runID string
	mode  string
}

func (r *runSink) Start(string, int64)    {}
func (r *runSink) Progress(string, int64) {}

func (r *runSink) Mismatch(rec verify.ErrorRecord) {
	r.sink.add(Row{RunID: r.runID, Mode: r.mode, ErrorRecord: rec})
}

func (r *runSink) Finish(verify.Stats) {
	r.sink.Flush()
}
