package receiptformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_StructuredDocument(t *testing.T) {
	data := []byte(`{
		"title": "Order #1",
		"currency": "RM",
		"items": [{"name": "Coffee", "quantity": 2, "price": 3.5}],
		"total": 7.00,
		"qr_data": "https://example.test/r/1"
	}`)

	doc, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "Order #1", doc.Title)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "Coffee", doc.Items[0].Name)
	assert.Equal(t, 2, doc.Items[0].Quantity)
	assert.InDelta(t, 3.5, doc.Items[0].UnitPrice, 0.0001)
	require.NotNil(t, doc.Total)
	assert.InDelta(t, 7.0, *doc.Total, 0.0001)
	assert.Nil(t, doc.Subtotal)
	assert.Equal(t, "https://example.test/r/1", doc.QRData)
	assert.False(t, doc.IsRaw())
}

func TestParse_StringNumbers(t *testing.T) {
	doc, err := Parse([]byte(`{"items": [{"name": "Tea", "quantity": "3", "unitPrice": "1.20"}], "tax": "0.36"}`))
	require.NoError(t, err)

	assert.Equal(t, 3, doc.Items[0].Quantity)
	assert.InDelta(t, 1.2, doc.Items[0].UnitPrice, 0.0001)
	require.NotNil(t, doc.Tax)
	assert.InDelta(t, 0.36, *doc.Tax, 0.0001)
}

func TestParse_InvalidNumber(t *testing.T) {
	_, err := Parse([]byte(`{"items": [{"name": "Tea", "price": "abc"}]}`))
	assert.Error(t, err)
}

func TestDocumentDefaults(t *testing.T) {
	doc := Document{RawText: "hello"}
	assert.True(t, doc.IsRaw())
	assert.Equal(t, "RM", doc.CurrencyCode())

	doc = Document{Content: "fallback"}
	assert.Equal(t, "fallback", doc.Text())

	assert.Equal(t, 1, Item{Name: "x"}.Qty())
	assert.Equal(t, 1, Item{Name: "x", Quantity: -4}.Qty())
	assert.Equal(t, 5, Item{Name: "x", Quantity: 5}.Qty())
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest([]byte(`{
		"printerId": "net_0",
		"connectionDetails": {"transportKind": "Network", "host": "10.0.0.5", "port": "9100"},
		"receiptData": {"content": "hello"},
		"paperSize": "MM58"
	}`))
	require.NoError(t, err)

	assert.Equal(t, "net_0", req.PrinterID)
	assert.Equal(t, TransportNetwork, req.Connection.TransportKind)
	assert.Equal(t, "10.0.0.5", req.Connection.Host)
	assert.Equal(t, 9100, req.Connection.Port)
	assert.Equal(t, PaperMM58, req.PaperSize)
	assert.Equal(t, "hello", req.Document.Content)
	assert.False(t, req.Degraded)
}

func TestParseRequest_PrinterTypeAlias(t *testing.T) {
	req, err := ParseRequest([]byte(`{"printerId": "usb_0", "connectionDetails": {"printerType": "usb"}}`))
	require.NoError(t, err)
	assert.Equal(t, TransportUSB, req.Connection.TransportKind)
}

func TestParseRequest_MalformedReceiptDegrades(t *testing.T) {
	req, err := ParseRequest([]byte(`{
		"printerId": "net_0",
		"receiptData": {"content": "plain text", "items": "not-a-list"}
	}`))
	require.NoError(t, err)

	assert.True(t, req.Degraded)
	assert.Equal(t, "plain text", req.Document.Content)
	assert.Empty(t, req.Document.Items)
}

func TestParseRequest_StringReceipt(t *testing.T) {
	req, err := ParseRequest([]byte(`{"printerId": "net_0", "receiptData": "just text"}`))
	require.NoError(t, err)

	assert.True(t, req.Degraded)
	assert.Equal(t, "just text", req.Document.Content)
}

func TestValidate(t *testing.T) {
	valid := &PrintRequest{PrinterID: "net_0", PaperSize: PaperMM80}
	assert.NoError(t, Validate(valid))

	assert.Error(t, Validate(&PrintRequest{}))
	assert.Error(t, Validate(&PrintRequest{
		PrinterID:  "x",
		Connection: ConnectionDetails{TransportKind: "bluetooth"},
	}))
	for _, paper := range []string{"58mm", "80", "a4"} {
		assert.NoError(t, Validate(&PrintRequest{PrinterID: "x", PaperSize: paper}), paper)
	}
	assert.Error(t, Validate(&PrintRequest{
		PrinterID:  "x",
		Connection: ConnectionDetails{TransportKind: TransportNetwork, Port: 70000},
	}))
}
