package screens

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/thereceipt/receipt-dispatcher/internal/dispatch"
	"github.com/thereceipt/receipt-dispatcher/internal/escpos"
	"github.com/thereceipt/receipt-dispatcher/internal/printer"
	"github.com/thereceipt/receipt-dispatcher/pkg/receiptformat"
)

var paperSizes = []string{receiptformat.PaperMM80, receiptformat.PaperMM58}

// PrintBuilder queues receipts from a JSON file or typed text
type PrintBuilder struct {
	app         *tview.Application
	manager     *printer.Manager
	queue       *dispatch.Queue
	form        *tview.Form
	printerList *tview.DropDown
	paperList   *tview.DropDown
	fileInput   *tview.InputField
	textInput   *tview.TextArea
	preview     *tview.TextView
	layout      *tview.Flex
	printers    []printer.Descriptor
}

// NewPrintBuilder creates a new print builder screen
func NewPrintBuilder(app *tview.Application, manager *printer.Manager, queue *dispatch.Queue) *PrintBuilder {
	p := &PrintBuilder{
		app:     app,
		manager: manager,
		queue:   queue,
	}

	p.setupUI()
	return p
}

func (p *PrintBuilder) setupUI() {
	p.printerList = tview.NewDropDown().SetLabel("Printer: ")
	p.paperList = tview.NewDropDown().SetLabel("Paper: ")
	p.paperList.SetOptions(paperSizes, nil)
	p.paperList.SetCurrentOption(0)

	p.fileInput = tview.NewInputField().
		SetLabel("Receipt JSON: ").
		SetPlaceholder("/path/to/receipt.json")

	p.textInput = tview.NewTextArea().
		SetLabel("Or raw text: ").
		SetPlaceholder("Lines without $ or RM are centered")
	p.textInput.SetSize(6, 0)

	p.preview = tview.NewTextView()
	p.preview.SetBorder(true)
	p.preview.SetTitle("Encoded Preview")
	p.preview.SetDynamicColors(true)
	p.preview.SetWordWrap(true)

	p.form = tview.NewForm()
	p.form.SetBorder(true)
	p.form.SetTitle("Print Receipt")
	p.form.AddFormItem(p.printerList)
	p.form.AddFormItem(p.paperList)
	p.form.AddFormItem(p.fileInput)
	p.form.AddFormItem(p.textInput)
	p.form.AddButton("Preview", p.showPreview)
	p.form.AddButton("Print", p.print)
	p.form.AddButton("Test Page", p.testPage)

	p.layout = tview.NewFlex().
		AddItem(p.form, 0, 1, true).
		AddItem(p.preview, 0, 1, false)
}

// Refresh reloads the printer choices off the UI goroutine
func (p *PrintBuilder) Refresh() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		printers := p.manager.Discover(ctx, printer.ScopeAll)
		p.app.QueueUpdateDraw(func() { p.setPrinters(printers) })
	}()
}

func (p *PrintBuilder) setPrinters(printers []printer.Descriptor) {
	p.printers = printers
	options := make([]string, len(printers))
	for i, d := range printers {
		options[i] = fmt.Sprintf("%s (%s)", d.DisplayName, d.ID)
	}
	if len(options) == 0 {
		options = []string{"no receipt printers"}
	}
	p.printerList.SetOptions(options, nil)
	p.printerList.SetCurrentOption(0)
}

// request builds a print request from the form, or explains why it cannot
func (p *PrintBuilder) request() (receiptformat.PrintRequest, error) {
	var req receiptformat.PrintRequest

	index, _ := p.printerList.GetCurrentOption()
	if index < 0 || index >= len(p.printers) {
		return req, fmt.Errorf("no printer selected")
	}
	req.PrinterID = p.printers[index].ID
	_, req.PaperSize = p.paperList.GetCurrentOption()

	if path := strings.TrimSpace(p.fileInput.GetText()); path != "" {
		doc, err := receiptformat.ParseFile(path)
		if err != nil {
			return req, err
		}
		req.Document = *doc
		return req, nil
	}

	text := p.textInput.GetText()
	if strings.TrimSpace(text) == "" {
		return req, fmt.Errorf("enter a receipt file or some text")
	}
	req.Document.RawText = text
	return req, nil
}

func (p *PrintBuilder) showPreview() {
	req, err := p.request()
	if err != nil {
		p.preview.SetText(fmt.Sprintf("[red]%s[white]", tview.Escape(err.Error())))
		return
	}
	p.preview.SetText(EncodePreview(req))
}

func (p *PrintBuilder) print() {
	req, err := p.request()
	if err != nil {
		p.preview.SetText(fmt.Sprintf("[red]%s[white]", tview.Escape(err.Error())))
		return
	}
	id := p.queue.Enqueue(req)
	p.preview.SetText(fmt.Sprintf("[green]✓ Queued job %s for %s[white]\n\n%s", shortID(id), req.PrinterID, EncodePreview(req)))
}

func (p *PrintBuilder) testPage() {
	index, _ := p.printerList.GetCurrentOption()
	if index < 0 || index >= len(p.printers) {
		p.preview.SetText("[red]no printer selected[white]")
		return
	}
	id := p.queue.EnqueueTest(receiptformat.PrintRequest{PrinterID: p.printers[index].ID})
	p.preview.SetText(fmt.Sprintf("[green]✓ Queued test page %s[white]", shortID(id)))
}

// EncodePreview encodes req locally and renders the byte count, warnings
// and hex preview
func EncodePreview(req receiptformat.PrintRequest) string {
	res := escpos.Encode(req.Document, printer.PaperWidth(req.PaperSize))

	var b strings.Builder
	fmt.Fprintf(&b, "[yellow]Width:[white] %d columns\n", res.Width)
	fmt.Fprintf(&b, "[yellow]Bytes:[white] %d\n", len(res.Data))
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "[orange]⚠ %s:[white] %s\n", w.Code, tview.Escape(w.Message))
	}
	fmt.Fprintf(&b, "\n%s\n", dispatch.HexPreview(res.Data, dispatch.PreviewBytes))
	return b.String()
}

// GetRoot returns the root primitive for this screen
func (p *PrintBuilder) GetRoot() tview.Primitive {
	return p.layout
}
