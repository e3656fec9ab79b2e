package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/thereceipt/receipt-dispatcher/internal/dispatch"
	"github.com/thereceipt/receipt-dispatcher/internal/printer"
	"github.com/thereceipt/receipt-dispatcher/pkg/receiptformat"
)

// handlePrinters lists printers
// Usage: printers [usb|network|local|all] [--all]
func (e *Executor) handlePrinters(ctx context.Context, args []string) *Result {
	scope := printer.ScopeAll
	unfiltered := false
	for _, arg := range args {
		if arg == "--all" {
			unfiltered = true
			continue
		}
		s, err := printer.ParseScope(arg)
		if err != nil {
			return failf("%v", err)
		}
		scope = s
	}

	var printers []printer.Descriptor
	if unfiltered {
		printers = e.manager.DiscoverAll(ctx)
	} else {
		printers = e.manager.Discover(ctx, scope)
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("%d printer(s) found", len(printers)),
		Data:    map[string]interface{}{"printers": printers},
	}
}

// handleStatus probes one printer
// Usage: status <printer-id>
func (e *Executor) handleStatus(ctx context.Context, args []string) *Result {
	if len(args) < 1 {
		return failf("usage: status <printer-id>")
	}

	desc, caps, err := e.dispatcher.Status(ctx, &receiptformat.PrintRequest{PrinterID: args[0]})
	if err != nil {
		return failf("%v", err)
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("%s is %s", desc.DisplayName, caps.Status),
		Data: map[string]interface{}{
			"printer":      desc,
			"capabilities": caps,
		},
	}
}

// handleTest prints the test page
// Usage: test <printer-id>
func (e *Executor) handleTest(ctx context.Context, args []string) *Result {
	if len(args) < 1 {
		return failf("usage: test <printer-id>")
	}
	out := e.dispatcher.TestPrint(ctx, &receiptformat.PrintRequest{PrinterID: args[0]})
	return outcomeResult(out, "test page sent")
}

// handlePrintText prints raw text
// Usage: print-text <printer-id> <text> [--paper mm58|mm80]
func (e *Executor) handlePrintText(ctx context.Context, args []string) *Result {
	const usage = "usage: print-text <printer-id> <text> [--paper mm58|mm80]"
	if len(args) < 2 {
		return failf(usage)
	}

	req := receiptformat.PrintRequest{PrinterID: args[0]}
	var text []string
	for i := 1; i < len(args); i++ {
		if args[i] == "--paper" {
			if i+1 >= len(args) {
				return failf(usage)
			}
			req.PaperSize = args[i+1]
			i++
			continue
		}
		text = append(text, args[i])
	}
	if len(text) == 0 {
		return failf(usage)
	}
	// Typed escapes let a single command line carry several lines
	req.Document.RawText = strings.ReplaceAll(strings.Join(text, " "), `\n`, "\n")

	if err := receiptformat.Validate(&req); err != nil {
		return failf("invalid request: %v", err)
	}

	out := e.dispatcher.PrintReceipt(ctx, &req)
	return outcomeResult(out, "receipt printed")
}

// handleDebug toggles byte-level dispatch logging
// Usage: debug [on|off]
func (e *Executor) handleDebug(args []string) *Result {
	cfg := e.dispatcher.Config()
	if len(args) == 0 {
		return &Result{
			Success: true,
			Message: fmt.Sprintf("debug is %s", onOff(cfg.Debug())),
			Data:    map[string]interface{}{"enabled": cfg.Debug()},
		}
	}

	var enabled bool
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		enabled = true
	case "off", "false", "0":
		enabled = false
	default:
		return failf("usage: debug [on|off]")
	}

	cfg.SetDebug(enabled)
	return &Result{
		Success: true,
		Message: fmt.Sprintf("debug %s", onOff(enabled)),
		Data:    map[string]interface{}{"enabled": enabled},
	}
}

// handleJobs lists queued jobs
// Usage: jobs [clear]
func (e *Executor) handleJobs(args []string) *Result {
	if e.queue == nil {
		return failf("job queue is not running")
	}

	if len(args) > 0 {
		if args[0] != "clear" {
			return failf("usage: jobs [clear]")
		}
		n := e.queue.ClearFinished()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("cleared %d finished job(s)", n),
			Data:    map[string]interface{}{"cleared": n},
		}
	}

	jobs := e.queue.GetAllJobs()
	return &Result{
		Success: true,
		Message: fmt.Sprintf("%d job(s)", len(jobs)),
		Data:    map[string]interface{}{"jobs": jobs},
	}
}

// handleAddNetwork declares a network printer
// Usage: add-network <host> [port] [name]
func (e *Executor) handleAddNetwork(args []string) *Result {
	const usage = "usage: add-network <host> [port] [name]"
	if len(args) < 1 {
		return failf(usage)
	}
	if e.registry == nil {
		return failf("network registry is not available")
	}

	port := 0
	name := ""
	if len(args) > 1 {
		p, err := strconv.Atoi(args[1])
		if err != nil {
			return failf("invalid port: %s", args[1])
		}
		port = p
	}
	if len(args) > 2 {
		name = strings.Join(args[2:], " ")
	}

	entry, err := e.registry.Add(args[0], port, name, "")
	if err != nil {
		return failf("%v", err)
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("network printer %s added", entry.Key()),
		Data:    map[string]interface{}{"printer": entry},
	}
}

// handleHelp shows help information
func (e *Executor) handleHelp(args []string) *Result {
	help := `Available commands:

  printers [usb|network|local|all] [--all]
    List receipt printers in a scope. --all includes non-receipt printers

  status <printer-id>
    Probe a printer and show its status

  test <printer-id>
    Print the test page

  print-text <printer-id> <text> [--paper mm58|mm80]
    Print raw text. Use \n for line breaks

  debug [on|off]
    Show or toggle byte-level dispatch logging

  jobs [clear]
    List queued jobs, or drop finished ones

  add-network <host> [port] [name]
    Declare a network printer (port defaults to 9100)

  help
    Show this help message`

	return &Result{
		Success: true,
		Message: help,
	}
}

func outcomeResult(out dispatch.Outcome, message string) *Result {
	data := map[string]interface{}{"outcome": out}
	if !out.OK {
		return &Result{Success: false, Error: out.Error, Data: data}
	}
	return &Result{
		Success: true,
		Message: fmt.Sprintf("%s (%d bytes to %s)", message, out.Bytes, out.Target),
		Data:    data,
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
