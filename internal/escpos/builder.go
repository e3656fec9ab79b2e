// Package escpos encodes receipt documents into ESC/POS command streams
package escpos

import (
	"bytes"
	"strings"
)

// ESC/POS control bytes
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	LF  byte = 0x0A
)

// Alignment is an ESC a argument
type Alignment byte

const (
	AlignLeft   Alignment = 0
	AlignCenter Alignment = 1
	AlignRight  Alignment = 2
)

// MaxBarcodeLen is the largest payload the one-byte Code-128 length prefix can frame
const MaxBarcodeLen = 255

// Builder appends ESC/POS commands to an in-memory buffer
type Builder struct {
	buffer *bytes.Buffer
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{
		buffer: new(bytes.Buffer),
	}
}

// Initialize emits ESC @
func (b *Builder) Initialize() *Builder {
	b.buffer.Write([]byte{ESC, '@'})
	return b
}

// Align emits ESC a n
func (b *Builder) Align(a Alignment) *Builder {
	b.buffer.Write([]byte{ESC, 'a', byte(a)})
	return b
}

// Text writes text without a line terminator
func (b *Builder) Text(s string) *Builder {
	b.buffer.WriteString(s)
	return b
}

// Line writes text followed by a newline
func (b *Builder) Line(s string) *Builder {
	b.buffer.WriteString(s)
	b.buffer.WriteByte(LF)
	return b
}

// Rule writes a full-width line of c
func (b *Builder) Rule(c byte, width int) *Builder {
	if width > 0 {
		b.buffer.WriteString(strings.Repeat(string(c), width))
	}
	b.buffer.WriteByte(LF)
	return b
}

// LineFeed emits a single LF
func (b *Builder) LineFeed() *Builder {
	b.buffer.WriteByte(LF)
	return b
}

// Feed emits ESC d n, printing the buffer and feeding n lines
func (b *Builder) Feed(lines int) *Builder {
	if lines < 0 {
		lines = 0
	}
	if lines > 255 {
		lines = 255
	}
	b.buffer.Write([]byte{ESC, 'd', byte(lines)})
	return b
}

// Cut emits GS V 66 0, a full cut after feeding to the cutter
func (b *Builder) Cut() *Builder {
	b.buffer.Write([]byte{GS, 'V', 0x42, 0x00})
	return b
}

// Code128 prints data as a Code-128 barcode with HRI text below.
// The caller is responsible for keeping data within MaxBarcodeLen.
func (b *Builder) Code128(data string) *Builder {
	b.buffer.Write([]byte{GS, 'H', 0x02}) // HRI below
	b.buffer.Write([]byte{GS, 'h', 0x50}) // height 80 dots
	b.buffer.Write([]byte{GS, 'w', 0x02}) // module width
	b.buffer.Write([]byte{GS, 'k', 0x49, byte(len(data))})
	b.buffer.WriteString(data)
	return b
}

// QR stores data in the symbol buffer and prints it as a model 2 QR code,
// module size 6, error correction level L.
func (b *Builder) QR(data string) *Builder {
	b.buffer.Write([]byte{GS, '(', 'k', 0x04, 0x00, 0x31, 0x41, 0x32, 0x00})
	b.buffer.Write([]byte{GS, '(', 'k', 0x03, 0x00, 0x31, 0x43, 0x06})
	b.buffer.Write([]byte{GS, '(', 'k', 0x03, 0x00, 0x31, 0x45, 0x30})

	n := len(data) + 3
	b.buffer.Write([]byte{GS, '(', 'k', byte(n & 0xFF), byte((n >> 8) & 0xFF), 0x31, 0x50, 0x30})
	b.buffer.WriteString(data)

	b.buffer.Write([]byte{GS, '(', 'k', 0x03, 0x00, 0x31, 0x51, 0x30})
	return b
}

// Raw appends bytes unchanged
func (b *Builder) Raw(p []byte) *Builder {
	b.buffer.Write(p)
	return b
}

// Len returns the number of bytes built so far
func (b *Builder) Len() int {
	return b.buffer.Len()
}

// Bytes returns a copy of the generated commands
func (b *Builder) Bytes() []byte {
	out := make([]byte, b.buffer.Len())
	copy(out, b.buffer.Bytes())
	return out
}

// Reset clears the buffer
func (b *Builder) Reset() {
	b.buffer.Reset()
}
