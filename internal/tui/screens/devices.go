package screens

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/thereceipt/receipt-dispatcher/internal/printer"
)

// DevicesView lists every enumerated printer, receipt or not
type DevicesView struct {
	app      *tview.Application
	manager  *printer.Manager
	list     *tview.List
	details  *tview.TextView
	layout   *tview.Flex
	printers []printer.Descriptor
}

// NewDevicesView creates a new devices view screen
func NewDevicesView(app *tview.Application, manager *printer.Manager) *DevicesView {
	d := &DevicesView{
		app:     app,
		manager: manager,
	}

	d.setupUI()
	return d
}

func (d *DevicesView) setupUI() {
	d.list = tview.NewList()
	d.list.SetBorder(true)
	d.list.SetTitle("All Printers")
	d.list.SetChangedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		d.selectDevice(index)
	})

	d.details = tview.NewTextView()
	d.details.SetBorder(true)
	d.details.SetTitle("Device Details")
	d.details.SetDynamicColors(true)

	d.layout = tview.NewFlex().
		AddItem(d.list, 0, 1, true).
		AddItem(d.details, 0, 2, false)

	d.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune {
			switch event.Rune() {
			case 'r':
				d.Refresh()
				return nil
			case 's':
				d.probe(d.list.GetCurrentItem())
				return nil
			}
		}
		return event
	})
}

// Refresh runs an unfiltered discovery pass off the UI goroutine
func (d *DevicesView) Refresh() {
	d.details.SetText("[yellow]Discovering...[white]")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		printers := d.manager.DiscoverAll(ctx)
		d.app.QueueUpdateDraw(func() { d.render(printers) })
	}()
}

func (d *DevicesView) render(printers []printer.Descriptor) {
	d.printers = printers
	d.list.Clear()

	if len(printers) == 0 {
		d.list.AddItem("No devices detected", "", 0, nil)
		d.details.SetText("[yellow]No printers visible to this host[white]")
		return
	}

	for _, p := range printers {
		d.list.AddItem(PrinterLabel(p), ConnectionSummary(p), 0, nil)
	}
	d.list.SetCurrentItem(0)
	d.selectDevice(0)
}

func (d *DevicesView) selectDevice(index int) {
	if index < 0 || index >= len(d.printers) {
		return
	}
	d.details.SetText(DescriptorDetails(d.printers[index]) +
		"\n[yellow]Press 's' to probe status, 'r' to refresh[white]")
}

// probe re-queries one printer's status and appends it to the details
func (d *DevicesView) probe(index int) {
	if index < 0 || index >= len(d.printers) {
		return
	}
	desc := d.printers[index]
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		caps := d.manager.Capabilities(ctx, desc)
		d.app.QueueUpdateDraw(func() {
			if d.list.GetCurrentItem() != index {
				return
			}
			d.details.SetText(DescriptorDetails(desc) + fmt.Sprintf(
				"\n[yellow]Status:[white] %s\n[yellow]Online:[white] %t  [yellow]Busy:[white] %t  [yellow]Paper:[white] %t  [yellow]Error:[white] %t\n",
				caps.Status, caps.Online, caps.Busy, caps.HasPaper, caps.HasError))
		})
	}()
}

// GetRoot returns the root primitive for this screen
func (d *DevicesView) GetRoot() tview.Primitive {
	return d.layout
}
