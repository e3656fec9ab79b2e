package escpos

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/thereceipt/receipt-dispatcher/pkg/receiptformat"
)

// DefaultWidth is the column count of 80 mm paper
const DefaultWidth = 48

// Result is an encoded job
type Result struct {
	Data     []byte
	Width    int
	Warnings []Warning
}

// Empty reports whether encoding produced no bytes
func (r Result) Empty() bool {
	return len(r.Data) == 0
}

type encoder struct {
	b        *Builder
	width    int
	currency string
	warnings []Warning
}

func (e *encoder) warn(code WarningCode, format string, args ...interface{}) {
	e.warnings = append(e.warnings, Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (e *encoder) lines(lines []string) {
	for _, l := range lines {
		e.b.Line(l)
	}
}

// Encode turns doc into an ESC/POS stream for a printer with width columns.
// It never fails: problems are reported as warnings and a recovered panic
// yields an empty Data so that callers can fall back to plain bytes.
func Encode(doc receiptformat.Document, width int) (res Result) {
	e := &encoder{
		b:        NewBuilder(),
		width:    width,
		currency: doc.CurrencyCode(),
	}
	if e.width <= 0 {
		e.warn(WarnWidthDefaulted, "paper width %d is not usable, using %d", width, DefaultWidth)
		e.width = DefaultWidth
	}

	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Width:    e.width,
				Warnings: append(e.warnings, Warning{Code: WarnDegraded, Message: fmt.Sprintf("encoder fault: %v", r)}),
			}
		}
	}()

	e.b.Initialize()
	if doc.IsRaw() {
		e.raw(doc.Text())
	} else {
		e.structured(&doc)
	}

	return Result{Data: e.b.Bytes(), Width: e.width, Warnings: e.warnings}
}

// raw prints each line centered unless it carries a currency marker
func (e *encoder) raw(text string) {
	for _, line := range splitLines(text) {
		if isPricedLine(line) {
			e.b.Align(AlignLeft)
		} else {
			e.b.Align(AlignCenter)
		}
		e.b.Line(line)
	}
	e.finish()
}

// isPricedLine is the raw-mode header heuristic: lines without "$" or "RM" are banners
func isPricedLine(line string) bool {
	return strings.Contains(line, "$") || strings.Contains(line, "RM")
}

// splitLines splits on LF, drops a trailing empty line and strips CR
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func (e *encoder) structured(doc *receiptformat.Document) {
	e.b.Align(AlignCenter)
	e.b.Rule('=', e.width)
	if doc.Title != "" {
		e.b.Line(doc.Title)
	}
	e.b.Rule('-', e.width)

	e.b.Align(AlignLeft)
	narrow := e.width < WideLayoutMin
	for i, item := range doc.Items {
		if item.Quantity < 0 {
			e.warn(WarnQuantityDefaulted, "item %d (%s) has quantity %d, using 1", i, item.Name, item.Quantity)
		}
		if item.UnitPrice < 0 {
			e.warn(WarnNegativeValue, "item %d (%s) has negative price %.2f", i, item.Name, item.UnitPrice)
		}
		qty := item.Qty()

		left := item.Name
		if qty != 1 {
			left += fmt.Sprintf(" x%d", qty)
		}
		right := Money(e.currency, LineTotal(item.UnitPrice, qty))
		e.lines(row(left, right, e.width, narrow))
	}
	e.b.Rule('-', e.width)

	e.total("Subtotal:", doc.Subtotal)
	e.total("Tax:", doc.Tax)
	e.total("Service:", doc.ServiceCharge)
	e.total("TOTAL:", doc.Total)
	e.b.Rule('=', e.width)

	if doc.Barcode != "" {
		e.barcode(doc.Barcode)
	}
	if doc.QRData != "" {
		e.qr(doc.QRData)
	}
	e.finish()
}

// total lays out a totals row; totals only wrap when they do not fit
func (e *encoder) total(label string, value *float64) {
	if value == nil {
		return
	}
	if *value < 0 {
		e.warn(WarnNegativeValue, "%s is negative", strings.TrimSuffix(label, ":"))
	}
	e.lines(row(label, Money(e.currency, decimal.NewFromFloat(*value)), e.width, false))
}

func (e *encoder) barcode(data string) {
	if len(data) > MaxBarcodeLen {
		e.warn(WarnBarcodeTruncated, "barcode of %d bytes truncated to %d", len(data), MaxBarcodeLen)
		data = data[:MaxBarcodeLen]
	}
	if w := checkBarcode(data); w != nil {
		e.warnings = append(e.warnings, *w)
	}
	e.b.Align(AlignCenter)
	e.b.Code128(data)
	e.b.LineFeed()
}

func (e *encoder) qr(data string) {
	if w := checkQR(data); w != nil {
		e.warnings = append(e.warnings, *w)
	}
	e.b.Align(AlignCenter)
	e.b.QR(data)
	e.b.LineFeed()
}

// finish ends the last line and cuts
func (e *encoder) finish() {
	e.b.LineFeed()
	e.b.Cut()
}
