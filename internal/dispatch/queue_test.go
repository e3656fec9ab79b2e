package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereceipt/receipt-dispatcher/pkg/receiptformat"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeRunner) run(kind string, req *receiptformat.PrintRequest) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind+":"+req.PrinterID)
	if f.fail[req.PrinterID] {
		return Outcome{OK: false, Error: "connect failed"}
	}
	return Outcome{OK: true, Bytes: 10}
}

func (f *fakeRunner) PrintReceipt(ctx context.Context, req *receiptformat.PrintRequest) Outcome {
	return f.run("receipt", req)
}

func (f *fakeRunner) PrintOrder(ctx context.Context, req *receiptformat.PrintRequest, data []byte) Outcome {
	return f.run("order", req)
}

func (f *fakeRunner) TestPrint(ctx context.Context, req *receiptformat.PrintRequest) Outcome {
	return f.run("test", req)
}

func waitFor(t *testing.T, q *Queue, id string, want JobStatus) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = q.GetJob(id)
		return ok && job.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestQueue_RunsJobsOnce(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{"bad": true}}
	q := NewQueue(runner, nil, nil)
	defer q.Stop()

	ok := q.Enqueue(receiptformat.PrintRequest{PrinterID: "good"})
	bad := q.Enqueue(receiptformat.PrintRequest{PrinterID: "bad"})

	assert.NotEqual(t, ok, bad)

	job := waitFor(t, q, ok, JobCompleted)
	require.NotNil(t, job.Outcome)
	assert.Equal(t, 10, job.Outcome.Bytes)

	job = waitFor(t, q, bad, JobFailed)
	assert.Equal(t, "connect failed", job.Error)

	runner.mu.Lock()
	assert.Equal(t, []string{"receipt:good", "receipt:bad"}, runner.calls, "failed jobs are not retried")
	runner.mu.Unlock()
}

func TestQueue_Kinds(t *testing.T) {
	runner := &fakeRunner{}
	q := NewQueue(runner, nil, nil)
	defer q.Stop()

	a := q.EnqueueOrder(receiptformat.PrintRequest{PrinterID: "p"}, []byte{0x1B, 0x40})
	b := q.EnqueueTest(receiptformat.PrintRequest{PrinterID: "p"})
	waitFor(t, q, a, JobCompleted)
	waitFor(t, q, b, JobCompleted)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, []string{"order:p", "test:p"}, runner.calls)
}

func TestQueue_ClearFinished(t *testing.T) {
	q := NewQueue(&fakeRunner{}, nil, nil)
	defer q.Stop()

	id := q.Enqueue(receiptformat.PrintRequest{PrinterID: "p"})
	waitFor(t, q, id, JobCompleted)

	assert.Len(t, q.GetAllJobs(), 1)
	assert.Equal(t, 1, q.ClearFinished())
	assert.Empty(t, q.GetAllJobs())

	_, ok := q.GetJob(id)
	assert.False(t, ok)
}

func TestQueue_OnUpdate(t *testing.T) {
	q := NewQueue(&fakeRunner{}, nil, nil)
	defer q.Stop()

	var mu sync.Mutex
	var seen []JobStatus
	q.OnUpdate(func(j Job) {
		mu.Lock()
		seen = append(seen, j.Status)
		mu.Unlock()
	})

	id := q.Enqueue(receiptformat.PrintRequest{PrinterID: "p"})
	waitFor(t, q, id, JobCompleted)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []JobStatus{JobQueued, JobPrinting, JobCompleted}, seen)
}
