package command

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereceipt/receipt-dispatcher/internal/dispatch"
	"github.com/thereceipt/receipt-dispatcher/internal/printer"
	"github.com/thereceipt/receipt-dispatcher/internal/registry"
	"github.com/thereceipt/receipt-dispatcher/pkg/receiptformat"
)

// receiver accepts raw print connections on loopback and hands back their bytes
func receiver(t *testing.T) (int, <-chan []byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan []byte, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			data, _ := io.ReadAll(conn)
			conn.Close()
			got <- data
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, got
}

func newTestExecutor(t *testing.T) (*Executor, *registry.Registry, *dispatch.Queue) {
	t.Helper()
	reg, err := registry.New("")
	require.NoError(t, err)

	manager := printer.NewManager(printer.WithEnumerators(&printer.NetworkEnumerator{Source: reg}))
	dispatcher := dispatch.New(
		dispatch.NewResolver(manager, time.Second),
		nil,
		dispatch.WithStatusReader(manager),
	)
	queue := dispatch.NewQueue(dispatcher, nil, nil)
	t.Cleanup(queue.Stop)

	return NewExecutor(manager, dispatcher, queue, reg), reg, queue
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"   ", []string{}},
		{"printers", []string{"printers"}},
		{"print-text net_0 hello world", []string{"print-text", "net_0", "hello", "world"}},
		{`print-text net_0 "hello world"`, []string{"print-text", "net_0", "hello world"}},
		{`add-network 10.0.0.5 9100 'Front Desk'`, []string{"add-network", "10.0.0.5", "9100", "Front Desk"}},
		{`say "it's"`, []string{"say", "it's"}},
		{`x ""`, []string{"x", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCommand(tt.in))
		})
	}
}

func TestExecute_UnknownAndEmpty(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	res := e.Execute(context.Background(), "")
	assert.False(t, res.Success)
	assert.Equal(t, "empty command", res.Error)

	res = e.Execute(context.Background(), "frobnicate")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown command")
}

func TestExecute_Help(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	res := e.Execute(context.Background(), "help")
	require.True(t, res.Success)
	for _, cmd := range []string{"printers", "status", "test", "print-text", "debug", "jobs", "add-network"} {
		assert.Contains(t, res.Message, cmd)
	}
}

func TestExecute_AddNetworkAndPrinters(t *testing.T) {
	e, reg, _ := newTestExecutor(t)

	res := e.Execute(context.Background(), `add-network 10.0.0.5 9101 "Front Desk"`)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, "Front Desk", reg.All()[0].Name)

	res = e.Execute(context.Background(), "printers network")
	require.True(t, res.Success)
	printers := res.Data["printers"].([]printer.Descriptor)
	require.Len(t, printers, 1)
	assert.Equal(t, "net_0", printers[0].ID)
	assert.Equal(t, 9101, printers[0].Connection.Port)

	res = e.Execute(context.Background(), "printers usb")
	require.True(t, res.Success)
	assert.Empty(t, res.Data["printers"])

	res = e.Execute(context.Background(), "printers sideways")
	assert.False(t, res.Success)
}

func TestExecute_AddNetworkInvalid(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	assert.False(t, e.Execute(context.Background(), "add-network").Success)
	assert.False(t, e.Execute(context.Background(), "add-network 10.0.0.5 abc").Success)
	assert.False(t, e.Execute(context.Background(), "add-network 10.0.0.5 70000").Success)
}

func TestExecute_PrintTextAndTest(t *testing.T) {
	e, reg, _ := newTestExecutor(t)
	port, got := receiver(t)
	_, err := reg.Add("127.0.0.1", port, "Loopback", "")
	require.NoError(t, err)

	res := e.Execute(context.Background(), `print-text net_0 "Hello\nTotal RM 1.00"`)
	require.True(t, res.Success, res.Error)

	data := <-got
	assert.Equal(t, []byte{0x1B, 0x40}, data[:2])
	assert.Contains(t, string(data), "Hello\n")
	assert.Contains(t, string(data), "Total RM 1.00\n")

	res = e.Execute(context.Background(), "test net_0")
	require.True(t, res.Success, res.Error)
	assert.Contains(t, string(<-got), "Hello POSMAC Printer")
}

func TestExecute_PrintTextUnknownPrinter(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	res := e.Execute(context.Background(), "print-text net_9 hello")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not found")

	res = e.Execute(context.Background(), "print-text net_0")
	assert.False(t, res.Success)

	res = e.Execute(context.Background(), "print-text net_0 hi --paper")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "usage")
}

func TestExecute_Status(t *testing.T) {
	e, reg, _ := newTestExecutor(t)
	port, _ := receiver(t)
	reg.Add("127.0.0.1", port, "Loopback", "")

	res := e.Execute(context.Background(), "status net_0")
	require.True(t, res.Success, res.Error)
	caps := res.Data["capabilities"].(printer.Capabilities)
	assert.Equal(t, printer.StatusOnline, caps.Status)

	assert.False(t, e.Execute(context.Background(), "status").Success)
	assert.False(t, e.Execute(context.Background(), "status net_7").Success)
}

func TestExecute_Debug(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	res := e.Execute(context.Background(), "debug on")
	require.True(t, res.Success)
	assert.True(t, e.dispatcher.Config().Debug())

	res = e.Execute(context.Background(), "debug")
	require.True(t, res.Success)
	assert.Equal(t, true, res.Data["enabled"])

	res = e.Execute(context.Background(), "debug off")
	require.True(t, res.Success)
	assert.False(t, e.dispatcher.Config().Debug())

	assert.False(t, e.Execute(context.Background(), "debug maybe").Success)
}

func TestExecute_Jobs(t *testing.T) {
	e, _, queue := newTestExecutor(t)

	id := queue.EnqueueTest(testRequest("net_5"))
	require.Eventually(t, func() bool {
		job, ok := queue.GetJob(id)
		return ok && job.Status == dispatch.JobFailed
	}, 2*time.Second, 10*time.Millisecond)

	res := e.Execute(context.Background(), "jobs")
	require.True(t, res.Success)
	assert.Len(t, res.Data["jobs"], 1)

	res = e.Execute(context.Background(), "jobs clear")
	require.True(t, res.Success)
	assert.Equal(t, 1, res.Data["cleared"])

	assert.False(t, e.Execute(context.Background(), "jobs purge").Success)
}

func TestExecute_JobsWithoutQueue(t *testing.T) {
	e := NewExecutor(printer.NewManager(), dispatch.New(dispatch.NewResolver(nil, 0), nil), nil, nil)

	assert.False(t, e.Execute(context.Background(), "jobs").Success)
	assert.False(t, e.Execute(context.Background(), "add-network 10.0.0.5").Success)
}

func testRequest(id string) receiptformat.PrintRequest {
	return receiptformat.PrintRequest{PrinterID: id}
}
