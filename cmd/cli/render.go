package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/thereceipt/receipt-dispatcher/internal/dispatch"
	"github.com/thereceipt/receipt-dispatcher/internal/printer"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

func renderPrinters(printers []printer.Descriptor) string {
	if len(printers) == 0 {
		return mutedStyle.Render("no printers found")
	}
	t := newTable("ID", "NAME", "TYPE", "CONNECTION", "PAPER")
	for _, p := range printers {
		t.Row(p.ID, p.DisplayName, string(p.Kind), connectionLabel(p.Connection), fmt.Sprintf("%d", p.PaperWidth))
	}
	return t.Render()
}

func connectionLabel(c printer.Connection) string {
	switch {
	case c.Host != "":
		return fmt.Sprintf("%s %s", c.Kind, c.Address())
	case c.VID != 0 || c.PID != 0:
		return fmt.Sprintf("%s %04X:%04X", c.Kind, c.VID, c.PID)
	case c.Device != "":
		return fmt.Sprintf("%s %s", c.Kind, c.Device)
	case c.QueueName != "":
		return fmt.Sprintf("%s %s", c.Kind, c.QueueName)
	}
	return string(c.Kind)
}

func renderJobs(jobs []dispatch.Job) string {
	if len(jobs) == 0 {
		return mutedStyle.Render("no jobs")
	}
	t := newTable("ID", "KIND", "PRINTER", "STATUS", "ERROR")
	for _, j := range jobs {
		t.Row(j.ID, string(j.Kind), j.PrinterID, string(j.Status), j.Error)
	}
	return t.Render()
}

func renderOutcome(out dispatch.Outcome) string {
	var b strings.Builder
	if out.OK {
		b.WriteString(okStyle.Render("printed"))
	} else {
		b.WriteString(failStyle.Render("failed"))
	}
	fmt.Fprintf(&b, " %d bytes", out.Bytes)
	if out.Transport != "" {
		fmt.Fprintf(&b, " via %s", out.Transport)
	}
	if out.Target != "" {
		fmt.Fprintf(&b, " to %s", out.Target)
	}
	if out.Error != "" {
		fmt.Fprintf(&b, "\n%s", failStyle.Render(out.Error))
	}
	for _, w := range out.Warnings {
		fmt.Fprintf(&b, "\n%s", mutedStyle.Render(fmt.Sprintf("warning %s: %s", w.Code, w.Message)))
	}
	return b.String()
}
