package escpos

// TestPageText is the banner printed by TestPage
const TestPageText = "Hello POSMAC Printer"

// TestPage returns the diagnostic page: initialize, center, banner, two
// blank lines, feed three lines and cut.
func TestPage() []byte {
	return NewBuilder().
		Initialize().
		Align(AlignCenter).
		Text(TestPageText).
		LineFeed().
		LineFeed().
		Feed(3).
		Cut().
		Bytes()
}
