package receiptformat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// flexNumber accepts a JSON number, a numeric string, or null
type flexNumber struct {
	value float64
	set   bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	n.value = v
	n.set = true
	return nil
}

func (n flexNumber) ptr() *float64 {
	if !n.set {
		return nil
	}
	v := n.value
	return &v
}

// UnmarshalJSON accepts "price" as an alias for "unitPrice" and string numbers
func (i *Item) UnmarshalJSON(data []byte) error {
	var temp struct {
		Name      string     `json:"name"`
		Quantity  flexNumber `json:"quantity"`
		UnitPrice flexNumber `json:"unitPrice"`
		Price     flexNumber `json:"price"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return fmt.Errorf("failed to parse item: %w", err)
	}

	i.Name = temp.Name
	i.Quantity = int(temp.Quantity.value)
	i.UnitPrice = temp.UnitPrice.value
	if !temp.UnitPrice.set {
		i.UnitPrice = temp.Price.value
	}
	return nil
}

// UnmarshalJSON accepts "qr_data" as an alias for "qrData" and string numbers
func (d *Document) UnmarshalJSON(data []byte) error {
	var temp struct {
		Title         string     `json:"title"`
		Currency      string     `json:"currency"`
		Items         []Item     `json:"items"`
		Subtotal      flexNumber `json:"subtotal"`
		Tax           flexNumber `json:"tax"`
		ServiceCharge flexNumber `json:"serviceCharge"`
		Total         flexNumber `json:"total"`
		Barcode       string     `json:"barcode"`
		QRData        string     `json:"qrData"`
		QRDataLegacy  string     `json:"qr_data"`
		RawText       string     `json:"rawText"`
		Content       string     `json:"content"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return fmt.Errorf("failed to parse receipt: %w", err)
	}

	*d = Document{
		Title:         temp.Title,
		Currency:      temp.Currency,
		Items:         temp.Items,
		Subtotal:      temp.Subtotal.ptr(),
		Tax:           temp.Tax.ptr(),
		ServiceCharge: temp.ServiceCharge.ptr(),
		Total:         temp.Total.ptr(),
		Barcode:       temp.Barcode,
		QRData:        temp.QRData,
		RawText:       temp.RawText,
		Content:       temp.Content,
	}
	if d.QRData == "" {
		d.QRData = temp.QRDataLegacy
	}
	return nil
}

// UnmarshalJSON accepts the port as a number or a string
func (c *ConnectionDetails) UnmarshalJSON(data []byte) error {
	var temp struct {
		TransportKind      string     `json:"transportKind"`
		PrinterType        string     `json:"printerType"`
		Host               string     `json:"host"`
		Port               flexNumber `json:"port"`
		DriverName         string     `json:"driverName"`
		PlatformSpecificID string     `json:"platformSpecificId"`
		Device             string     `json:"device"`
		Baud               flexNumber `json:"baud"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return fmt.Errorf("failed to parse connection details: %w", err)
	}

	*c = ConnectionDetails{
		TransportKind:      strings.ToLower(temp.TransportKind),
		Host:               temp.Host,
		Port:               int(temp.Port.value),
		DriverName:         temp.DriverName,
		PlatformSpecificID: temp.PlatformSpecificID,
		Device:             temp.Device,
		Baud:               int(temp.Baud.value),
	}
	if c.TransportKind == "" {
		c.TransportKind = strings.ToLower(temp.PrinterType)
	}
	return nil
}

// UnmarshalJSON decodes a request leniently. A receiptData value that is not a
// valid document degrades to its content string instead of failing.
func (r *PrintRequest) UnmarshalJSON(data []byte) error {
	var temp struct {
		PrinterID   string            `json:"printerId"`
		Connection  ConnectionDetails `json:"connectionDetails"`
		ReceiptData json.RawMessage   `json:"receiptData"`
		PaperSize   string            `json:"paperSize"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return fmt.Errorf("failed to parse print request: %w", err)
	}

	*r = PrintRequest{
		PrinterID:  temp.PrinterID,
		Connection: temp.Connection,
		PaperSize:  strings.ToLower(temp.PaperSize),
	}

	raw := bytes.TrimSpace(temp.ReceiptData)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	if err := json.Unmarshal(raw, &r.Document); err != nil {
		r.Document = Document{Content: recoverContent(raw)}
		r.Degraded = true
	}
	return nil
}

// recoverContent pulls a content string out of a payload that failed to decode
func recoverContent(raw []byte) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	for _, key := range []string{"content", "rawText"} {
		if v, ok := fields[key]; ok {
			if err := json.Unmarshal(v, &text); err == nil && text != "" {
				return text
			}
		}
	}
	return ""
}

// Parse parses a receipt document from JSON
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseFile parses a receipt document from disk
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt file: %w", err)
	}

	return Parse(data)
}

// ParseRequest parses a print request from JSON
func ParseRequest(data []byte) (*PrintRequest, error) {
	var req PrintRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ToJSON converts a Document to JSON bytes
func (d *Document) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
