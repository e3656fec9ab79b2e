// Package tui is the operator console: printers, queue, logs and a command
// line over the running dispatcher
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/thereceipt/receipt-dispatcher/internal/command"
	"github.com/thereceipt/receipt-dispatcher/internal/dispatch"
	"github.com/thereceipt/receipt-dispatcher/internal/printer"
	"github.com/thereceipt/receipt-dispatcher/internal/registry"
	"github.com/thereceipt/receipt-dispatcher/internal/tui/screens"
)

const (
	maxLogs         = 200
	logBuffer       = 512
	refreshInterval = 2 * time.Second
)

type logLine struct {
	level   string
	message string
	at      time.Time
}

// App is the tview console. It implements logging.Sink; lines logged before
// Run are buffered and lines beyond the buffer are dropped.
type App struct {
	App        *tview.Application
	manager    *printer.Manager
	dispatcher *dispatch.Dispatcher
	queue      *dispatch.Queue
	executor   *command.Executor
	addr       string

	flex         *tview.Flex
	printersList *tview.List
	queueTable   *tview.Table
	statusBox    *tview.TextView
	logsArea     *tview.TextView
	commandInput *tview.InputField

	lines     chan logLine
	logs      []string
	startTime time.Time
	printers  []printer.Descriptor

	currentScreen  string
	registryScreen *screens.RegistryEditor
	devicesScreen  *screens.DevicesView
	jobsScreen     *screens.JobsView
	printScreen    *screens.PrintBuilder
}

// New creates the console. addr is shown in the status panel.
func New(manager *printer.Manager, dispatcher *dispatch.Dispatcher, queue *dispatch.Queue, reg *registry.Registry, addr string) *App {
	app := tview.NewApplication()

	t := &App{
		App:           app,
		manager:       manager,
		dispatcher:    dispatcher,
		queue:         queue,
		executor:      command.NewExecutor(manager, dispatcher, queue, reg),
		addr:          addr,
		lines:         make(chan logLine, logBuffer),
		startTime:     time.Now(),
		currentScreen: "main",
	}

	t.setupUI()
	t.registryScreen = screens.NewRegistryEditor(app, reg)
	t.devicesScreen = screens.NewDevicesView(app, manager)
	t.jobsScreen = screens.NewJobsView(app, queue)
	t.printScreen = screens.NewPrintBuilder(app, manager, queue)
	return t
}

func (t *App) setupUI() {
	t.printersList = tview.NewList()
	t.printersList.SetBorder(true)
	t.printersList.SetTitle("Receipt Printers")

	t.queueTable = tview.NewTable()
	t.queueTable.SetBorder(true)
	t.queueTable.SetTitle("Print Queue")

	t.statusBox = tview.NewTextView()
	t.statusBox.SetBorder(true)
	t.statusBox.SetTitle("Server Status")
	t.statusBox.SetDynamicColors(true)

	t.logsArea = tview.NewTextView()
	t.logsArea.SetBorder(true)
	t.logsArea.SetTitle("Logs")
	t.logsArea.SetDynamicColors(true)
	t.logsArea.SetScrollable(true)

	t.commandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0).
		SetPlaceholder("Type a command (e.g., 'help')").
		SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyEnter {
				t.executeCommand(t.commandInput.GetText())
				t.commandInput.SetText("")
			}
		})

	topRow := tview.NewFlex().
		AddItem(t.printersList, 0, 1, false).
		AddItem(t.queueTable, 0, 1, false).
		AddItem(t.statusBox, 0, 1, false)

	bottom := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.logsArea, 0, 3, false).
		AddItem(t.commandInput, 1, 0, true)

	t.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 1, false).
		AddItem(bottom, 0, 1, false)

	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if t.currentScreen != "main" {
			if event.Key() == tcell.KeyEsc {
				t.showMainScreen()
				return nil
			}
			return event
		}

		// Shortcut letters are typed into the command line while it has focus
		if t.commandInput.HasFocus() {
			if event.Key() == tcell.KeyEsc {
				t.App.SetFocus(t.printersList)
				return nil
			}
			return event
		}

		switch event.Key() {
		case tcell.KeyCtrlC, tcell.KeyEsc:
			t.App.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case ':':
				t.App.SetFocus(t.commandInput)
				return nil
			case 'q':
				t.App.Stop()
				return nil
			case 'r':
				t.showScreen("registry")
				return nil
			case 'd':
				t.showScreen("devices")
				return nil
			case 'j':
				t.showScreen("jobs")
				return nil
			case 'p':
				t.showScreen("print")
				return nil
			}
		}
		return event
	})

	t.App.SetRoot(t.flex, true)
}

// Run starts the console and blocks until it exits or ctx is canceled
func (t *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go t.pumpLogs(ctx)
	go t.refreshLoop(ctx)
	go func() {
		<-ctx.Done()
		t.App.Stop()
	}()

	t.Log("info", "receipt dispatcher console started")
	return t.App.Run()
}

// Log implements logging.Sink
func (t *App) Log(level, message string) {
	select {
	case t.lines <- logLine{level: level, message: message, at: time.Now()}:
	default:
	}
}

// NotifyPrinters refreshes the printers panel after a monitor change
func (t *App) NotifyPrinters() {
	go t.discover(context.Background())
}

func (t *App) pumpLogs(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-t.lines:
			t.App.QueueUpdateDraw(func() { t.addLog(line) })
		}
	}
}

// refreshLoop redraws the queue and status panels on a ticker and runs a
// discovery pass every few ticks. Discovery does I/O and stays off the UI
// goroutine.
func (t *App) refreshLoop(ctx context.Context) {
	t.discover(ctx)

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		t.App.QueueUpdateDraw(func() {
			t.refreshQueue()
			t.refreshStatus()
			if t.currentScreen == "jobs" {
				t.jobsScreen.Refresh()
			}
		})
		if tick%5 == 0 {
			t.discover(ctx)
		}
	}
}

func (t *App) discover(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	printers := t.manager.Discover(ctx, printer.ScopeAll)
	t.App.QueueUpdateDraw(func() { t.renderPrinters(printers) })
}

func (t *App) renderPrinters(printers []printer.Descriptor) {
	t.printers = printers
	t.printersList.Clear()

	if len(printers) == 0 {
		t.printersList.AddItem("No printers detected", "", 0, nil)
		return
	}
	for _, p := range printers {
		t.printersList.AddItem(screens.PrinterLabel(p), screens.ConnectionSummary(p), 0, nil)
	}
}

func (t *App) refreshQueue() {
	t.queueTable.Clear()

	t.queueTable.SetCell(0, 0, tview.NewTableCell("Status").SetAlign(tview.AlignCenter).SetSelectable(false))
	t.queueTable.SetCell(0, 1, tview.NewTableCell("Printer").SetAlign(tview.AlignCenter).SetSelectable(false))
	t.queueTable.SetCell(0, 2, tview.NewTableCell("Kind").SetAlign(tview.AlignCenter).SetSelectable(false))
	t.queueTable.SetCell(0, 3, tview.NewTableCell("Time").SetAlign(tview.AlignCenter).SetSelectable(false))

	jobs := t.queue.GetAllJobs()
	counts := make(map[dispatch.JobStatus]int)

	for i, job := range jobs {
		row := i + 1
		t.queueTable.SetCell(row, 0, tview.NewTableCell(screens.StatusIcon(job.Status)+" "+string(job.Status)))
		t.queueTable.SetCell(row, 1, tview.NewTableCell(job.PrinterID))
		t.queueTable.SetCell(row, 2, tview.NewTableCell(string(job.Kind)))
		t.queueTable.SetCell(row, 3, tview.NewTableCell(time.Since(job.CreatedAt).Truncate(time.Second).String()))
		counts[job.Status]++
	}

	if len(jobs) > 0 {
		summary := fmt.Sprintf("[%d] Queued [%d] Printing [%d] Completed [%d] Failed",
			counts[dispatch.JobQueued], counts[dispatch.JobPrinting], counts[dispatch.JobCompleted], counts[dispatch.JobFailed])
		t.queueTable.SetCell(len(jobs)+1, 0, tview.NewTableCell(tview.Escape(summary)).SetSelectable(false))
	}
}

func (t *App) refreshStatus() {
	t.statusBox.SetText(statusText(time.Since(t.startTime), t.addr, len(t.printers),
		len(t.queue.GetAllJobs()), t.dispatcher.Config().Debug()))
}

func statusText(uptime time.Duration, addr string, printers, jobs int, debug bool) string {
	hours := int(uptime.Hours())
	minutes := int(uptime.Minutes()) % 60
	debugState := "[gray]off[white]"
	if debug {
		debugState = "[yellow]on[white]"
	}

	return fmt.Sprintf(`[green]🟢 Running[white]

Uptime: %dh %dm
API: %s
Printers: %d
Jobs: %d total
Debug: %s`, hours, minutes, addr, printers, jobs, debugState)
}

// executeCommand handles console navigation locally and hands every other
// command to the shared executor
func (t *App) executeCommand(cmd string) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return
	}
	t.Log("command", cmd)

	switch strings.ToLower(strings.Fields(cmd)[0]) {
	case "registry":
		t.showScreen("registry")
		return
	case "devices":
		t.showScreen("devices")
		return
	case "print":
		t.showScreen("print")
		return
	case "clear":
		t.logs = nil
		t.logsArea.Clear()
		return
	case "quit", "exit":
		t.App.Stop()
		return
	}

	// Commands may probe or print, so they run off the UI goroutine
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		result := t.executor.Execute(ctx, cmd)
		if !result.Success {
			t.Log("error", result.Error)
			return
		}
		t.Log("info", result.Message)
		if printers, ok := result.Data["printers"].([]printer.Descriptor); ok {
			for _, p := range printers {
				t.Log("info", "  "+screens.ConnectionSummary(p)+"  "+p.DisplayName)
			}
		}
	}()
}

func (t *App) showScreen(name string) {
	t.currentScreen = name

	var root tview.Primitive
	switch name {
	case "registry":
		t.registryScreen.Refresh()
		root = t.registryScreen.GetRoot()
	case "devices":
		t.devicesScreen.Refresh()
		root = t.devicesScreen.GetRoot()
	case "jobs":
		t.jobsScreen.Refresh()
		root = t.jobsScreen.GetRoot()
	case "print":
		t.printScreen.Refresh()
		root = t.printScreen.GetRoot()
	default:
		t.showMainScreen()
		return
	}
	t.App.SetRoot(root, true)
	t.App.SetFocus(root)
}

func (t *App) showMainScreen() {
	t.currentScreen = "main"
	t.App.SetRoot(t.flex, true)
	t.App.SetFocus(t.commandInput)
}

func (t *App) addLog(line logLine) {
	t.logs = append(t.logs, formatLog(line))
	if len(t.logs) > maxLogs {
		t.logs = t.logs[len(t.logs)-maxLogs:]
	}

	t.logsArea.SetText(strings.Join(t.logs, ""))
	t.logsArea.ScrollToEnd()
}

func formatLog(line logLine) string {
	var color, icon string
	switch line.level {
	case "error", "dpanic", "panic", "fatal":
		color, icon = "[red]", "❌"
	case "warn", "warning":
		color, icon = "[yellow]", "⚠️"
	case "command":
		color, icon = "[cyan]", ">"
	case "debug":
		color, icon = "[gray]", "·"
	default:
		color, icon = "[white]", "ℹ️"
	}

	return fmt.Sprintf("%s[%s] %s %s[white]\n", color, line.at.Format("15:04:05"), icon, tview.Escape(line.message))
}
