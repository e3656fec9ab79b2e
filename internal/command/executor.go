// Package command runs text commands from the API and the operator console
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/thereceipt/receipt-dispatcher/internal/dispatch"
	"github.com/thereceipt/receipt-dispatcher/internal/printer"
	"github.com/thereceipt/receipt-dispatcher/internal/registry"
)

// Executor executes commands
type Executor struct {
	manager    *printer.Manager
	dispatcher *dispatch.Dispatcher
	queue      *dispatch.Queue
	registry   *registry.Registry
}

// NewExecutor creates a new command executor. queue and reg may be nil;
// the commands that need them then report an error.
func NewExecutor(manager *printer.Manager, dispatcher *dispatch.Dispatcher, queue *dispatch.Queue, reg *registry.Registry) *Executor {
	return &Executor{
		manager:    manager,
		dispatcher: dispatcher,
		queue:      queue,
		registry:   reg,
	}
}

// Result represents the result of executing a command
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func failf(format string, args ...interface{}) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Execute executes a command string and returns a result
func (e *Executor) Execute(ctx context.Context, cmdStr string) *Result {
	parts := parseCommand(cmdStr)
	if len(parts) == 0 {
		return failf("empty command")
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "printers":
		return e.handlePrinters(ctx, args)
	case "status":
		return e.handleStatus(ctx, args)
	case "test":
		return e.handleTest(ctx, args)
	case "print-text":
		return e.handlePrintText(ctx, args)
	case "debug":
		return e.handleDebug(args)
	case "jobs":
		return e.handleJobs(args)
	case "add-network":
		return e.handleAddNetwork(args)
	case "help":
		return e.handleHelp(args)
	default:
		return failf("unknown command: %s. Type 'help' for available commands", command)
	}
}

// parseCommand splits a command line on spaces, keeping quoted strings whole
func parseCommand(cmdStr string) []string {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return []string{}
	}

	var parts []string
	var current strings.Builder
	inQuotes := false
	quoted := false
	quoteChar := byte(0)

	for i := 0; i < len(cmdStr); i++ {
		char := cmdStr[i]

		switch {
		case (char == '"' || char == '\'') && !inQuotes:
			inQuotes = true
			quoted = true
			quoteChar = char
		case inQuotes && char == quoteChar:
			inQuotes = false
			quoteChar = 0
		case (char == ' ' || char == '\t') && !inQuotes:
			if current.Len() > 0 || quoted {
				parts = append(parts, current.String())
				current.Reset()
				quoted = false
			}
		default:
			current.WriteByte(char)
		}
	}

	if current.Len() > 0 || quoted {
		parts = append(parts, current.String())
	}

	return parts
}
