// Package receiptformat defines the wire types for print requests and receipt documents
package receiptformat

// Transport kinds accepted in ConnectionDetails.TransportKind
const (
	TransportUSB     = "usb"
	TransportNetwork = "network"
	TransportLocal   = "local"
	TransportSerial  = "serial"
)

// Paper size hints
const (
	PaperMM58 = "mm58"
	PaperMM80 = "mm80"
)

// DefaultCurrency is used when a document does not name one
const DefaultCurrency = "RM"

// PrintRequest is a single print invocation from the host
type PrintRequest struct {
	PrinterID  string            `json:"printerId"`
	Connection ConnectionDetails `json:"connectionDetails"`
	Document   Document          `json:"receiptData"`
	PaperSize  string            `json:"paperSize,omitempty"`

	// Degraded is set when receiptData could not be decoded as a document
	// and only its content string was recovered.
	Degraded bool `json:"-"`
}

// ConnectionDetails tells the dispatcher how to reach a printer
type ConnectionDetails struct {
	TransportKind      string `json:"transportKind,omitempty"`
	Host               string `json:"host,omitempty"`
	Port               int    `json:"port,omitempty"`
	DriverName         string `json:"driverName,omitempty"`
	PlatformSpecificID string `json:"platformSpecificId,omitempty"`
	Device             string `json:"device,omitempty"` // serial device path
	Baud               int    `json:"baud,omitempty"`
}

// Document is a structured receipt or a block of raw text.
// When RawText (or Content) is set and Items is empty the structured
// fields are ignored.
type Document struct {
	Title         string   `json:"title,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	Items         []Item   `json:"items,omitempty"`
	Subtotal      *float64 `json:"subtotal,omitempty"`
	Tax           *float64 `json:"tax,omitempty"`
	ServiceCharge *float64 `json:"serviceCharge,omitempty"`
	Total         *float64 `json:"total,omitempty"`
	Barcode       string   `json:"barcode,omitempty"`
	QRData        string   `json:"qrData,omitempty"`
	RawText       string   `json:"rawText,omitempty"`
	Content       string   `json:"content,omitempty"`
}

// Item is one receipt line
type Item struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity,omitempty"`
	UnitPrice float64 `json:"unitPrice"`
}

// Text returns the raw text of the document, preferring RawText over Content
func (d *Document) Text() string {
	if d.RawText != "" {
		return d.RawText
	}
	return d.Content
}

// IsRaw reports whether the document prints in raw text mode
func (d *Document) IsRaw() bool {
	return len(d.Items) == 0 && d.Text() != ""
}

// CurrencyCode returns the currency prefix, defaulting to RM
func (d *Document) CurrencyCode() string {
	if d.Currency == "" {
		return DefaultCurrency
	}
	return d.Currency
}

// Qty returns the item quantity, defaulting to 1
func (i Item) Qty() int {
	if i.Quantity < 1 {
		return 1
	}
	return i.Quantity
}

// Float is a helper for building optional totals
func Float(v float64) *float64 {
	return &v
}
