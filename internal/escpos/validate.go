package escpos

import (
	"fmt"

	"github.com/boombuler/barcode/code128"
	qrcode "github.com/skip2/go-qrcode"
)

// WarningCode classifies a soft encoding problem
type WarningCode string

const (
	WarnDegraded          WarningCode = "encoding_degraded"
	WarnBarcodeTruncated  WarningCode = "barcode_truncated"
	WarnBarcodeCharset    WarningCode = "barcode_unencodable"
	WarnQRTooLarge        WarningCode = "qr_too_large"
	WarnNegativeValue     WarningCode = "negative_value"
	WarnQuantityDefaulted WarningCode = "quantity_defaulted"
	WarnWidthDefaulted    WarningCode = "width_defaulted"
)

// Warning is a problem the encoder worked around
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}

// checkBarcode reports whether a Code-128 symbol can carry data.
// Bytes are still emitted when it cannot; the printer decides.
func checkBarcode(data string) *Warning {
	if _, err := code128.Encode(data); err != nil {
		return &Warning{Code: WarnBarcodeCharset, Message: fmt.Sprintf("barcode payload is not Code-128 encodable: %v", err)}
	}
	return nil
}

// checkQR reports whether data fits a level L QR symbol
func checkQR(data string) *Warning {
	if _, err := qrcode.New(data, qrcode.Low); err != nil {
		return &Warning{Code: WarnQRTooLarge, Message: fmt.Sprintf("qr payload of %d bytes does not fit a level L symbol: %v", len(data), err)}
	}
	return nil
}
