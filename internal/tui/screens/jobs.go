package screens

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/thereceipt/receipt-dispatcher/internal/dispatch"
)

// JobsView shows detailed information about queued print jobs
type JobsView struct {
	app     *tview.Application
	queue   *dispatch.Queue
	table   *tview.Table
	details *tview.TextView
	layout  *tview.Flex
	jobs    []dispatch.Job
}

// NewJobsView creates a new jobs view screen
func NewJobsView(app *tview.Application, queue *dispatch.Queue) *JobsView {
	j := &JobsView{
		app:   app,
		queue: queue,
	}

	j.setupUI()
	return j
}

func (j *JobsView) setupUI() {
	j.table = tview.NewTable()
	j.table.SetBorder(true)
	j.table.SetTitle("Print Jobs")
	j.table.SetSelectable(true, false)
	j.table.SetFixed(1, 0)
	j.table.SetSelectionChangedFunc(func(row, column int) {
		j.selectJob(row)
	})

	j.details = tview.NewTextView()
	j.details.SetBorder(true)
	j.details.SetTitle("Job Details")
	j.details.SetDynamicColors(true)

	j.layout = tview.NewFlex().
		AddItem(j.table, 0, 2, true).
		AddItem(j.details, 0, 1, false)

	j.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune {
			switch event.Rune() {
			case 'r':
				j.Refresh()
				return nil
			case 'c':
				j.clearFinished()
				return nil
			}
		}
		return event
	})
}

// Refresh redraws the table from the queue. It must run on the UI goroutine.
func (j *JobsView) Refresh() {
	j.table.Clear()

	headers := []string{"ID", "Kind", "Printer", "Status", "Bytes", "Age"}
	for col, h := range headers {
		j.table.SetCell(0, col, tview.NewTableCell(h).SetAlign(tview.AlignCenter).SetSelectable(false))
	}

	j.jobs = j.queue.GetAllJobs()
	for i, job := range j.jobs {
		row := i + 1
		bytes := "-"
		if job.Outcome != nil {
			bytes = fmt.Sprintf("%d", job.Outcome.Bytes)
		}

		j.table.SetCell(row, 0, tview.NewTableCell(shortID(job.ID)))
		j.table.SetCell(row, 1, tview.NewTableCell(string(job.Kind)))
		j.table.SetCell(row, 2, tview.NewTableCell(job.PrinterID))
		j.table.SetCell(row, 3, tview.NewTableCell(StatusIcon(job.Status)+" "+string(job.Status)))
		j.table.SetCell(row, 4, tview.NewTableCell(bytes).SetAlign(tview.AlignRight))
		j.table.SetCell(row, 5, tview.NewTableCell(time.Since(job.CreatedAt).Truncate(time.Second).String()))
	}

	if len(j.jobs) == 0 {
		j.details.SetText("[yellow]No jobs in queue[white]")
	}
}

func (j *JobsView) selectJob(row int) {
	if row < 1 || row-1 >= len(j.jobs) {
		return
	}
	j.details.SetText(JobDetails(j.jobs[row-1]) + "\n[yellow]Press 'r' to refresh, 'c' to clear finished[white]")
}

func (j *JobsView) clearFinished() {
	n := j.queue.ClearFinished()
	j.Refresh()
	j.details.SetText(fmt.Sprintf("[green]Cleared %d finished job(s)[white]", n))
}

// JobDetails renders one job with tview color tags
func JobDetails(job dispatch.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[yellow]Job ID:[white] %s\n", job.ID)
	fmt.Fprintf(&b, "[yellow]Kind:[white] %s\n", job.Kind)
	fmt.Fprintf(&b, "[yellow]Printer:[white] %s\n", job.PrinterID)
	fmt.Fprintf(&b, "[yellow]Status:[white] %s %s\n", StatusIcon(job.Status), job.Status)
	fmt.Fprintf(&b, "[yellow]Created:[white] %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))

	if out := job.Outcome; out != nil {
		fmt.Fprintf(&b, "[yellow]Transport:[white] %s %s\n", out.Transport, out.Target)
		fmt.Fprintf(&b, "[yellow]Bytes:[white] %d in %s\n", out.Bytes, out.Duration.Round(time.Millisecond))
		for _, w := range out.Warnings {
			fmt.Fprintf(&b, "[yellow]Warning:[white] %s %s\n", w.Code, tview.Escape(w.Message))
		}
	}
	if job.Error != "" {
		fmt.Fprintf(&b, "\n[red]Error:[white] %s\n", tview.Escape(job.Error))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// GetRoot returns the root primitive for this screen
func (j *JobsView) GetRoot() tview.Primitive {
	return j.layout
}
