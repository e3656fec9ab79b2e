// Package dispatch runs print jobs: encode, resolve a transport, then open,
// write and close a fresh session per call.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/thereceipt/receipt-dispatcher/internal/escpos"
	"github.com/thereceipt/receipt-dispatcher/internal/metrics"
	"github.com/thereceipt/receipt-dispatcher/internal/printer"
	"github.com/thereceipt/receipt-dispatcher/internal/transport"
	"github.com/thereceipt/receipt-dispatcher/pkg/receiptformat"
)

// ErrNothingToPrint is returned when neither encoding nor the raw fallback
// produced any bytes
var ErrNothingToPrint = errors.New("nothing to print")

// StatusReader answers status queries for a descriptor
type StatusReader interface {
	Capabilities(ctx context.Context, d printer.Descriptor) printer.Capabilities
}

// Outcome is the result of one dispatch. OK is the host-facing boolean.
type Outcome struct {
	OK        bool             `json:"success"`
	State     State            `json:"state"`
	Trace     []State          `json:"trace"`
	Bytes     int              `json:"bytes"`
	PrinterID string           `json:"printerId,omitempty"`
	Transport string           `json:"transport,omitempty"`
	Target    string           `json:"target,omitempty"`
	Warnings  []escpos.Warning `json:"warnings,omitempty"`
	Err       error            `json:"-"`
	Error     string           `json:"error,omitempty"`
	Duration  time.Duration    `json:"duration"`
}

// Dispatcher prints documents. It holds no transport handles between calls.
type Dispatcher struct {
	resolver *Resolver
	status   StatusReader
	config   *Config
	locks    *DeviceLocks
	logger   *zap.Logger
	metrics  *metrics.Collector
	onResult func(Outcome)
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics records every outcome in c
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Dispatcher) { d.metrics = c }
}

// WithStatusReader sets the status source used by Status
func WithStatusReader(s StatusReader) Option {
	return func(d *Dispatcher) { d.status = s }
}

// WithResultHook runs fn after every dispatch
func WithResultHook(fn func(Outcome)) Option {
	return func(d *Dispatcher) { d.onResult = fn }
}

// New creates a dispatcher. A nil config uses NewConfig.
func New(resolver *Resolver, config *Config, opts ...Option) *Dispatcher {
	if config == nil {
		config = NewConfig()
	}
	d := &Dispatcher{
		resolver: resolver,
		config:   config,
		locks:    NewDeviceLocks(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Config returns the dispatcher configuration
func (d *Dispatcher) Config() *Config { return d.config }

// PrintReceipt encodes the request's document and prints it. Failures are
// reported in the Outcome; nothing is retried.
func (d *Dispatcher) PrintReceipt(ctx context.Context, req *receiptformat.PrintRequest) Outcome {
	j := newJob()
	d.step(j, StateEncoding)

	paper := req.PaperSize
	if paper == "" {
		paper = d.config.PaperSize
	}
	res := escpos.Encode(req.Document, printer.PaperWidth(paper))
	warnings := res.Warnings
	if req.Degraded {
		warnings = append(warnings, escpos.Warning{Code: escpos.WarnDegraded, Message: "receiptData was malformed, printing its content"})
	}

	data := res.Data
	if res.Empty() {
		data = []byte(req.Document.Text())
		warnings = append(warnings, escpos.Warning{Code: escpos.WarnDegraded, Message: "encoder produced no output, sending raw text"})
	}
	for _, w := range warnings {
		d.logger.Warn("receipt encoding degraded", zap.String("code", string(w.Code)), zap.String("detail", w.Message))
		d.metrics.RecordWarning(string(w.Code))
	}

	out := d.deliver(ctx, j, req, data)
	out.Warnings = warnings
	return d.finish(out)
}

// PrintOrder sends caller-supplied bytes verbatim
func (d *Dispatcher) PrintOrder(ctx context.Context, req *receiptformat.PrintRequest, data []byte) Outcome {
	j := newJob()
	d.step(j, StateEncoding)
	return d.finish(d.deliver(ctx, j, req, data))
}

// TestPrint sends the fixed test page
func (d *Dispatcher) TestPrint(ctx context.Context, req *receiptformat.PrintRequest) Outcome {
	return d.PrintOrder(ctx, req, escpos.TestPage())
}

// Status resolves the request's printer and re-probes it
func (d *Dispatcher) Status(ctx context.Context, req *receiptformat.PrintRequest) (printer.Descriptor, printer.Capabilities, error) {
	desc, err := d.resolver.Describe(ctx, req)
	if err != nil {
		return printer.Descriptor{}, printer.Capabilities{Status: printer.StatusOffline}, err
	}
	if d.status == nil {
		return desc, printer.Capabilities{}, fmt.Errorf("status: %w", transport.ErrUnavailable)
	}
	return desc, d.status.Capabilities(ctx, desc), nil
}

// step moves j to s. An illegal transition leaves j where it is and is
// logged, since it means a dispatch path skipped a state.
func (d *Dispatcher) step(j *job, s State) {
	from := j.state
	if err := j.to(s); err != nil {
		d.logger.Error("illegal dispatch transition", zap.Stringer("from", from), zap.Stringer("to", s))
		return
	}
	if d.config.Debug() {
		d.logger.Debug("dispatch state", zap.Stringer("from", from), zap.Stringer("to", s))
	}
}

// deliver runs Connecting, Writing and Closing for data. j must be in
// Encoding.
func (d *Dispatcher) deliver(ctx context.Context, j *job, req *receiptformat.PrintRequest, data []byte) Outcome {
	start := time.Now()
	out := Outcome{PrinterID: req.PrinterID}

	fail := func(err error) Outcome {
		d.step(j, StateClosing)
		d.step(j, StateDone)
		out.Err = err
		out.State, out.Trace = j.state, j.trace
		out.Duration = time.Since(start)
		return out
	}

	if len(data) == 0 {
		return fail(ErrNothingToPrint)
	}

	target, err := d.resolver.Resolve(ctx, req)
	if err != nil {
		return fail(err)
	}
	out.PrinterID = target.Descriptor.ID
	out.Transport = target.Transport.Kind()
	out.Target = target.Transport.Target()

	if d.config.Debug() {
		d.logger.Info("dispatch",
			zap.String("printer", out.PrinterID),
			zap.String("transport", out.Transport),
			zap.String("target", out.Target),
			zap.Int("bytes", len(data)),
			zap.String("hex", HexPreview(data, PreviewBytes)))
	}

	if d.config.SerializeDevices {
		unlock := d.locks.Lock(target.Descriptor.LockKey())
		defer unlock()
	}

	session := transport.NewSession(target.Transport)
	d.step(j, StateConnecting)
	err = session.Open(ctx)
	if err == nil {
		d.step(j, StateWriting)
		_, err = session.Write(data)
	}

	d.step(j, StateClosing)
	if cerr := session.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("%w: close %s: %v", transport.ErrWrite, out.Target, cerr)
	}
	d.step(j, StateDone)

	out.Bytes = session.Written()
	out.OK = err == nil
	out.Err = err
	out.State, out.Trace = j.state, j.trace
	out.Duration = time.Since(start)
	return out
}

func (d *Dispatcher) finish(out Outcome) Outcome {
	if out.Err != nil {
		out.Error = out.Err.Error()
		d.logger.Warn("print failed",
			zap.String("printer", out.PrinterID),
			zap.String("transport", out.Transport),
			zap.Error(out.Err))
	} else {
		d.logger.Info("print complete",
			zap.String("printer", out.PrinterID),
			zap.String("transport", out.Transport),
			zap.Int("bytes", out.Bytes))
	}
	if d.config.Debug() {
		d.logger.Info("dispatch trace", zap.Stringers("states", out.Trace))
	}

	d.metrics.RecordPrint(out.Transport, out.OK, out.Bytes, out.Duration.Seconds())
	if d.onResult != nil {
		d.onResult(out)
	}
	return out
}
