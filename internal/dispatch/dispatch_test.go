package dispatch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/thereceipt/receipt-dispatcher/internal/printer"
	"github.com/thereceipt/receipt-dispatcher/internal/transport"
	"github.com/thereceipt/receipt-dispatcher/pkg/receiptformat"
)

// printerServer is a loopback raw printing port that records each connection
type printerServer struct {
	ln   net.Listener
	mu   sync.Mutex
	jobs [][]byte
	done chan struct{}
}

func newPrinterServer(t *testing.T) *printerServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &printerServer{ln: ln, done: make(chan struct{}, 16)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				data, _ := io.ReadAll(c)
				s.mu.Lock()
				s.jobs = append(s.jobs, data)
				s.mu.Unlock()
				s.done <- struct{}{}
			}(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *printerServer) port() int { return s.ln.Addr().(*net.TCPAddr).Port }

func (s *printerServer) wait(t *testing.T) []byte {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("printer received nothing")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[len(s.jobs)-1]
}

func networkRequest(port int, doc receiptformat.Document) *receiptformat.PrintRequest {
	return &receiptformat.PrintRequest{
		Connection: receiptformat.ConnectionDetails{
			TransportKind: receiptformat.TransportNetwork,
			Host:          "127.0.0.1",
			Port:          port,
		},
		Document: doc,
	}
}

func closedPort(t *testing.T) int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestPrintReceipt_Network(t *testing.T) {
	srv := newPrinterServer(t)
	d := New(NewResolver(nil, time.Second), nil)

	doc := receiptformat.Document{
		Title:    "Order #1",
		Currency: "RM",
		Items:    []receiptformat.Item{{Name: "Coffee", Quantity: 2, UnitPrice: 3.5}},
		Total:    receiptformat.Float(7),
	}
	out := d.PrintReceipt(context.Background(), networkRequest(srv.port(), doc))

	require.True(t, out.OK, out.Error)
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, []State{StateIdle, StateEncoding, StateConnecting, StateWriting, StateClosing, StateDone}, out.Trace)
	assert.Equal(t, transport.KindNetwork, out.Transport)

	data := srv.wait(t)
	assert.Equal(t, len(data), out.Bytes)
	assert.True(t, bytes.HasPrefix(data, []byte{0x1B, 0x40}))
	assert.True(t, bytes.HasSuffix(data, []byte{0x1D, 0x56, 0x42, 0x00}))
	assert.Contains(t, string(data), "Coffee x2")
	assert.Contains(t, string(data), "RM 7.00")
}

func TestPrintReceipt_PaperSize(t *testing.T) {
	srv := newPrinterServer(t)
	d := New(NewResolver(nil, time.Second), nil)

	req := networkRequest(srv.port(), receiptformat.Document{Items: []receiptformat.Item{{Name: "Tea", UnitPrice: 1}}})
	req.PaperSize = receiptformat.PaperMM58
	require.True(t, d.PrintReceipt(context.Background(), req).OK)

	data := srv.wait(t)
	assert.Contains(t, string(data), strings.Repeat("=", 32)+"\n")
	assert.NotContains(t, string(data), strings.Repeat("=", 33))
}

func TestPrintReceipt_DefaultPaperSize(t *testing.T) {
	srv := newPrinterServer(t)
	cfg := NewConfig()
	cfg.PaperSize = receiptformat.PaperMM58
	d := New(NewResolver(nil, time.Second), cfg)

	req := networkRequest(srv.port(), receiptformat.Document{Items: []receiptformat.Item{{Name: "Tea", UnitPrice: 1}}})
	require.True(t, d.PrintReceipt(context.Background(), req).OK)

	data := srv.wait(t)
	assert.NotContains(t, string(data), strings.Repeat("=", 33))

	// An explicit size wins over the default
	req.PaperSize = receiptformat.PaperMM80
	require.True(t, d.PrintReceipt(context.Background(), req).OK)
	assert.Contains(t, string(srv.wait(t)), strings.Repeat("=", 48))
}

func TestPrintReceipt_RefusedReturnsFalse(t *testing.T) {
	d := New(NewResolver(nil, time.Second), nil)

	out := d.PrintReceipt(context.Background(), networkRequest(closedPort(t), receiptformat.Document{RawText: "hi"}))

	assert.False(t, out.OK)
	assert.ErrorIs(t, out.Err, transport.ErrConnect)
	assert.Equal(t, []State{StateIdle, StateEncoding, StateConnecting, StateClosing, StateDone}, out.Trace)
	assert.Equal(t, 0, out.Bytes)
	assert.NotEmpty(t, out.Error)
}

func TestPrintReceipt_ConnectTimeout(t *testing.T) {
	d := New(NewResolver(nil, 50*time.Millisecond), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	// 192.0.2.0/24 is reserved for documentation and never answers
	req := &receiptformat.PrintRequest{
		Connection: receiptformat.ConnectionDetails{TransportKind: "network", Host: "192.0.2.1", Port: 9100},
		Document:   receiptformat.Document{RawText: "hi"},
	}
	out := d.PrintReceipt(ctx, req)

	assert.False(t, out.OK)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StateDone, out.State)
}

func TestPrintReceipt_UnresolvableDoesNoIO(t *testing.T) {
	connects := 0
	r := NewResolver(nil, time.Second)
	r.factory = func(printer.Descriptor) (transport.Transport, error) {
		connects++
		return nil, errors.New("unreachable")
	}
	d := New(r, nil)

	out := d.PrintReceipt(context.Background(), &receiptformat.PrintRequest{
		Connection: receiptformat.ConnectionDetails{TransportKind: "network"},
		Document:   receiptformat.Document{RawText: "hi"},
	})

	assert.False(t, out.OK)
	assert.ErrorIs(t, out.Err, transport.ErrUnavailable)
	assert.Equal(t, 0, connects)
	assert.Equal(t, []State{StateIdle, StateEncoding, StateClosing, StateDone}, out.Trace)
}

type fakeConn struct {
	buf    bytes.Buffer
	accept int
	closed int
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.accept >= 0 && c.accept < len(p) {
		c.buf.Write(p[:c.accept])
		return c.accept, nil
	}
	return c.buf.Write(p)
}

func (c *fakeConn) Close() error {
	c.closed++
	return nil
}

type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
	delay time.Duration
	short int
}

func (f *fakeTransport) Kind() string   { return "fake" }
func (f *fakeTransport) Target() string { return "fake0" }

func (f *fakeTransport) Connect(ctx context.Context) (transport.Conn, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeConn{accept: f.short}
	f.mu.Lock()
	f.conns = append(f.conns, c)
	f.mu.Unlock()
	return c, nil
}

func fakeDispatcher(ft *fakeTransport, opts ...Option) *Dispatcher {
	r := NewResolver(nil, time.Second)
	r.factory = func(printer.Descriptor) (transport.Transport, error) { return ft, nil }
	return New(r, nil, opts...)
}

func spoolRequest(queue string) *receiptformat.PrintRequest {
	return &receiptformat.PrintRequest{
		Connection: receiptformat.ConnectionDetails{TransportKind: "local", PlatformSpecificID: queue},
	}
}

func TestPrintReceipt_FreshSessionPerCall(t *testing.T) {
	ft := &fakeTransport{short: -1}
	d := fakeDispatcher(ft)

	req := spoolRequest("Kitchen")
	req.Document.RawText = "one"
	require.True(t, d.PrintReceipt(context.Background(), req).OK)
	require.True(t, d.PrintReceipt(context.Background(), req).OK)

	require.Len(t, ft.conns, 2)
	for _, c := range ft.conns {
		assert.Equal(t, 1, c.closed)
	}
	assert.NotSame(t, ft.conns[0], ft.conns[1])
}

func TestPrintReceipt_ShortWriteFails(t *testing.T) {
	ft := &fakeTransport{short: 4}
	d := fakeDispatcher(ft)

	req := spoolRequest("Kitchen")
	req.Document.RawText = "hello"
	out := d.PrintReceipt(context.Background(), req)

	assert.False(t, out.OK)
	assert.ErrorIs(t, out.Err, transport.ErrShortWrite)
	assert.Equal(t, 4, out.Bytes)
	require.Len(t, ft.conns, 1)
	assert.Equal(t, 1, ft.conns[0].closed, "session closes after a failed write")
}

func TestPrintReceipt_DegradedRequestStillPrints(t *testing.T) {
	ft := &fakeTransport{short: -1}
	d := fakeDispatcher(ft)

	req, err := receiptformat.ParseRequest([]byte(`{"printerId":"x","connectionDetails":{"transportKind":"local","platformSpecificId":"Q"},"receiptData":"plain text"}`))
	require.NoError(t, err)

	out := d.PrintReceipt(context.Background(), req)
	require.True(t, out.OK, out.Error)
	require.NotEmpty(t, out.Warnings)
	assert.Contains(t, ft.conns[0].buf.String(), "plain text\n")
}

func TestPrintOrder_Verbatim(t *testing.T) {
	ft := &fakeTransport{short: -1}
	d := fakeDispatcher(ft)

	payload := []byte{0x1B, 0x40, 'A', 0x0A}
	out := d.PrintOrder(context.Background(), spoolRequest("Q"), payload)

	require.True(t, out.OK)
	assert.Equal(t, payload, ft.conns[0].buf.Bytes())
}

func TestPrintOrder_EmptyFails(t *testing.T) {
	ft := &fakeTransport{short: -1}
	d := fakeDispatcher(ft)

	out := d.PrintOrder(context.Background(), spoolRequest("Q"), nil)
	assert.False(t, out.OK)
	assert.ErrorIs(t, out.Err, ErrNothingToPrint)
	assert.Empty(t, ft.conns)
}

func TestTestPrint(t *testing.T) {
	ft := &fakeTransport{short: -1}
	d := fakeDispatcher(ft)

	require.True(t, d.TestPrint(context.Background(), spoolRequest("Q")).OK)
	data := ft.conns[0].buf.Bytes()
	assert.True(t, bytes.HasPrefix(data, []byte{0x1B, 0x40, 0x1B, 0x61, 0x01}))
	assert.Contains(t, string(data), "Hello POSMAC Printer")
}

func TestDeviceSerialization(t *testing.T) {
	ft := &fakeTransport{short: -1, delay: 20 * time.Millisecond}
	var mu sync.Mutex
	active, peak := 0, 0
	d := fakeDispatcher(ft)
	r := d.resolver
	r.factory = func(printer.Descriptor) (transport.Transport, error) {
		return &countingTransport{fakeTransport: ft, before: func() {
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
		}, after: func() {
			mu.Lock()
			active--
			mu.Unlock()
		}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.PrintOrder(context.Background(), spoolRequest("Same"), []byte("x"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	assert.Len(t, ft.conns, 4)
}

type countingTransport struct {
	*fakeTransport
	before, after func()
}

func (c *countingTransport) Connect(ctx context.Context) (transport.Conn, error) {
	c.before()
	defer c.after()
	return c.fakeTransport.Connect(ctx)
}

func TestResultHook(t *testing.T) {
	ft := &fakeTransport{short: -1}
	var got []Outcome
	d := fakeDispatcher(ft, WithResultHook(func(o Outcome) { got = append(got, o) }))

	d.PrintOrder(context.Background(), spoolRequest("Q"), []byte("x"))
	require.Len(t, got, 1)
	assert.True(t, got[0].OK)
}

func TestConfig_SetDebug(t *testing.T) {
	c := NewConfig()
	assert.False(t, c.Debug())

	var changes []bool
	c.OnDebugChange(func(v bool) { changes = append(changes, v) })

	c.SetDebug(true)
	c.SetDebug(true)
	c.SetDebug(false)

	assert.False(t, c.Debug())
	assert.Equal(t, []bool{true, false}, changes)
}

func TestHexPreview(t *testing.T) {
	assert.Equal(t, "1B 40 1B 61 01", HexPreview([]byte{0x1B, 0x40, 0x1B, 0x61, 0x01}, 128))
	assert.Equal(t, "", HexPreview(nil, 128))

	long := bytes.Repeat([]byte{0xAB}, 130)
	preview := HexPreview(long, 128)
	assert.True(t, strings.HasSuffix(preview, "AB ..."))
	assert.Equal(t, 128, strings.Count(preview, "AB"))

	exact := bytes.Repeat([]byte{0x0A}, 128)
	assert.False(t, strings.HasSuffix(HexPreview(exact, 128), "..."))
}

func TestStep_LogsIllegalTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	d := New(NewResolver(nil, time.Second), nil, WithLogger(zap.New(core)))

	j := newJob()
	d.step(j, StateDone)
	assert.Equal(t, StateIdle, j.state)
	assert.Equal(t, 1, logs.FilterMessage("illegal dispatch transition").Len())

	srv := newPrinterServer(t)
	out := d.PrintOrder(context.Background(), networkRequest(srv.port(), receiptformat.Document{}), []byte("hi"))
	srv.wait(t)
	require.True(t, out.OK, out.Error)
	assert.Equal(t, 1, logs.FilterMessage("illegal dispatch transition").Len(), "a clean dispatch takes only legal steps")
}

func TestStep_DebugLogsEachState(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := NewConfig()
	cfg.SetDebug(true)
	d := New(NewResolver(nil, time.Second), cfg, WithLogger(zap.New(core)))

	out := d.PrintOrder(context.Background(), networkRequest(closedPort(t), receiptformat.Document{}), []byte("hi"))
	assert.False(t, out.OK)
	// encoding, connecting, closing, done
	assert.Equal(t, 4, logs.FilterMessage("dispatch state").Len())
}

func TestStateTransitions(t *testing.T) {
	j := newJob()
	assert.Error(t, j.to(StateWriting))
	require.NoError(t, j.to(StateEncoding))
	assert.Error(t, j.to(StateDone), "done is only reachable through closing")
	require.NoError(t, j.to(StateClosing))
	require.NoError(t, j.to(StateDone))
	assert.Equal(t, "done", StateDone.String())

	text, err := StateWriting.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "writing", string(text))
}

func TestDeviceLocks(t *testing.T) {
	l := NewDeviceLocks()
	unlock := l.Lock("10.0.0.5:9100")
	unlock()
	unlock = l.Lock("10.0.0.5:9100")
	unlock()
	l.Lock("usb:04B8:0E15")()
	assert.Equal(t, 2, l.Len())
}
