package screens

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/thereceipt/receipt-dispatcher/internal/dispatch"
	"github.com/thereceipt/receipt-dispatcher/internal/printer"
)

// StatusIcon returns the marker shown next to a job status
func StatusIcon(status dispatch.JobStatus) string {
	switch status {
	case dispatch.JobQueued:
		return "⏳"
	case dispatch.JobPrinting:
		return "🟡"
	case dispatch.JobCompleted:
		return "✅"
	case dispatch.JobFailed:
		return "❌"
	default:
		return "⚪"
	}
}

// PrinterLabel is the list text of a descriptor: receipt printers get a
// printer glyph, generic ones a dimmed dot
func PrinterLabel(d printer.Descriptor) string {
	mark := "🖨"
	if d.Kind != printer.KindReceipt {
		mark = "·"
	}
	return fmt.Sprintf("%s %s", mark, d.DisplayName)
}

// ConnectionSummary is the one-line secondary text of a descriptor
func ConnectionSummary(d printer.Descriptor) string {
	c := d.Connection
	via := strings.ToUpper(string(c.Kind))
	switch {
	case c.Host != "":
		return fmt.Sprintf("%s • %s • %s", d.ID, via, c.Address())
	case c.VID != 0 || c.PID != 0:
		return fmt.Sprintf("%s • %s • %04X:%04X", d.ID, via, c.VID, c.PID)
	case c.Device != "":
		return fmt.Sprintf("%s • %s • %s", d.ID, via, c.Device)
	case c.QueueName != "":
		return fmt.Sprintf("%s • %s • %s", d.ID, via, c.QueueName)
	}
	return fmt.Sprintf("%s • %s", d.ID, via)
}

// DescriptorDetails renders every known field of d with tview color tags
func DescriptorDetails(d printer.Descriptor) string {
	c := d.Connection
	var b strings.Builder
	fmt.Fprintf(&b, "[yellow]ID:[white] %s\n", d.ID)
	fmt.Fprintf(&b, "[yellow]Name:[white] %s\n", tview.Escape(d.DisplayName))
	fmt.Fprintf(&b, "[yellow]Kind:[white] %s\n", d.Kind)
	fmt.Fprintf(&b, "[yellow]Connection:[white] %s\n", c.Kind)
	fmt.Fprintf(&b, "[yellow]Paper width:[white] %d columns\n", d.PaperWidth)

	if d.ModelHint != "" {
		fmt.Fprintf(&b, "[yellow]Model:[white] %s\n", tview.Escape(d.ModelHint))
	}
	if c.Host != "" {
		fmt.Fprintf(&b, "[yellow]Address:[white] %s\n", c.Address())
	}
	if c.VID != 0 || c.PID != 0 {
		fmt.Fprintf(&b, "[yellow]VID:PID:[white] %04X:%04X\n", c.VID, c.PID)
	}
	if c.Serial != "" {
		fmt.Fprintf(&b, "[yellow]Serial:[white] %s\n", c.Serial)
	}
	if c.QueueName != "" {
		fmt.Fprintf(&b, "[yellow]Queue:[white] %s\n", tview.Escape(c.QueueName))
	}
	if c.PortName != "" {
		fmt.Fprintf(&b, "[yellow]Port:[white] %s\n", tview.Escape(c.PortName))
	}
	if c.Device != "" {
		fmt.Fprintf(&b, "[yellow]Device:[white] %s\n", c.Device)
	}
	return b.String()
}
