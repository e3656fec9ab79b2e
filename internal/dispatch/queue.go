package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thereceipt/receipt-dispatcher/internal/metrics"
	"github.com/thereceipt/receipt-dispatcher/pkg/receiptformat"
)

// JobStatus is the lifecycle of an async job
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobPrinting  JobStatus = "printing"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobKind selects the dispatcher operation
type JobKind string

const (
	JobReceipt JobKind = "receipt"
	JobOrder   JobKind = "order"
	JobTest    JobKind = "test"
)

// Job is one queued print
type Job struct {
	ID         string                     `json:"id"`
	Kind       JobKind                    `json:"kind"`
	PrinterID  string                     `json:"printerId,omitempty"`
	Status     JobStatus                  `json:"status"`
	Error      string                     `json:"error,omitempty"`
	Outcome    *Outcome                   `json:"outcome,omitempty"`
	CreatedAt  time.Time                  `json:"createdAt"`
	FinishedAt time.Time                  `json:"finishedAt,omitempty"`
	Request    receiptformat.PrintRequest `json:"-"`
	Data       []byte                     `json:"-"`
}

// Runner is the subset of Dispatcher the queue drives
type Runner interface {
	PrintReceipt(ctx context.Context, req *receiptformat.PrintRequest) Outcome
	PrintOrder(ctx context.Context, req *receiptformat.PrintRequest, data []byte) Outcome
	TestPrint(ctx context.Context, req *receiptformat.PrintRequest) Outcome
}

// Queue runs jobs one at a time in submission order. Each job is tried once.
type Queue struct {
	runner  Runner
	logger  *zap.Logger
	metrics *metrics.Collector

	jobs   []*Job
	mu     sync.Mutex
	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	onUpdate func(Job)
}

// NewQueue creates a queue and starts its worker
func NewQueue(runner Runner, logger *zap.Logger, collector *metrics.Collector) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		runner:  runner,
		logger:  logger,
		metrics: collector,
		jobs:    make([]*Job, 0),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}

	q.wg.Add(1)
	go q.worker()

	return q
}

// OnUpdate registers a callback run after every status change
func (q *Queue) OnUpdate(fn func(Job)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onUpdate = fn
}

// Enqueue adds a receipt job and returns its id
func (q *Queue) Enqueue(req receiptformat.PrintRequest) string {
	return q.add(&Job{Kind: JobReceipt, Request: req})
}

// EnqueueOrder adds a raw bytes job
func (q *Queue) EnqueueOrder(req receiptformat.PrintRequest, data []byte) string {
	return q.add(&Job{Kind: JobOrder, Request: req, Data: append([]byte(nil), data...)})
}

// EnqueueTest adds a test page job
func (q *Queue) EnqueueTest(req receiptformat.PrintRequest) string {
	return q.add(&Job{Kind: JobTest, Request: req})
}

func (q *Queue) add(job *Job) string {
	q.mu.Lock()
	job.ID = uuid.NewString()
	job.PrinterID = job.Request.PrinterID
	job.Status = JobQueued
	job.CreatedAt = time.Now()
	q.jobs = append(q.jobs, job)
	q.metrics.SetQueued(q.countLocked(JobQueued))
	snapshot := *job
	q.mu.Unlock()

	q.notify(snapshot)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return job.ID
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		for q.processNextJob() {
		}
		select {
		case <-q.ctx.Done():
			return
		case <-q.wake:
		}
	}
}

// processNextJob runs the oldest queued job and reports whether there was one
func (q *Queue) processNextJob() bool {
	if q.ctx.Err() != nil {
		return false
	}

	q.mu.Lock()
	var job *Job
	for _, j := range q.jobs {
		if j.Status == JobQueued {
			job = j
			job.Status = JobPrinting
			break
		}
	}
	if job == nil {
		q.mu.Unlock()
		return false
	}
	q.metrics.SetQueued(q.countLocked(JobQueued))
	snapshot := *job
	q.mu.Unlock()
	q.notify(snapshot)

	var out Outcome
	switch job.Kind {
	case JobOrder:
		out = q.runner.PrintOrder(q.ctx, &snapshot.Request, snapshot.Data)
	case JobTest:
		out = q.runner.TestPrint(q.ctx, &snapshot.Request)
	default:
		out = q.runner.PrintReceipt(q.ctx, &snapshot.Request)
	}

	q.mu.Lock()
	job.Outcome = &out
	job.FinishedAt = time.Now()
	if out.OK {
		job.Status = JobCompleted
		q.logger.Info("print job completed", zap.String("job", job.ID))
	} else {
		job.Status = JobFailed
		job.Error = out.Error
		q.logger.Warn("print job failed", zap.String("job", job.ID), zap.String("error", out.Error))
	}
	snapshot = *job
	q.mu.Unlock()
	q.notify(snapshot)

	return true
}

func (q *Queue) notify(job Job) {
	q.mu.Lock()
	fn := q.onUpdate
	q.mu.Unlock()
	if fn != nil {
		fn(job)
	}
}

func (q *Queue) countLocked(status JobStatus) int {
	n := 0
	for _, j := range q.jobs {
		if j.Status == status {
			n++
		}
	}
	return n
}

// GetJob returns a copy of the job with id
func (q *Queue) GetJob(jobID string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, job := range q.jobs {
		if job.ID == jobID {
			return *job, true
		}
	}
	return Job{}, false
}

// GetAllJobs returns copies of every job in submission order
func (q *Queue) GetAllJobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := make([]Job, len(q.jobs))
	for i, job := range q.jobs {
		jobs[i] = *job
	}
	return jobs
}

// ClearFinished removes completed and failed jobs
func (q *Queue) ClearFinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	filtered := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		if job.Status == JobQueued || job.Status == JobPrinting {
			filtered = append(filtered, job)
		}
	}
	removed := len(q.jobs) - len(filtered)
	q.jobs = filtered
	return removed
}

// Stop cancels the running job and waits for the worker. Queued jobs stay
// queued.
func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()
}
