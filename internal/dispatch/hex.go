package dispatch

import (
	"fmt"
	"strings"
)

// PreviewBytes is how many bytes debug logs show
const PreviewBytes = 128

// HexPreview renders the first max bytes of b as upper-case hex pairs,
// appending " ..." when b is longer
func HexPreview(b []byte, max int) string {
	if max <= 0 {
		max = PreviewBytes
	}
	n := len(b)
	if n > max {
		n = max
	}

	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b[i])
	}
	if len(b) > max {
		sb.WriteString(" ...")
	}
	return sb.String()
}
