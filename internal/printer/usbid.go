package printer

import (
	"fmt"
	"strconv"
	"strings"
)

// USBID is a vendor/product pair
type USBID struct {
	VID uint16
	PID uint16
}

func (id USBID) String() string {
	return fmt.Sprintf("%04X:%04X", id.VID, id.PID)
}

// ParseUSBID parses identifiers like "04B8:0E15", "0x04b8:0x0e15",
// "VID_04B8&PID_0E15" or "1208:3605". Hex is tried first, then decimal.
func ParseUSBID(s string) (USBID, error) {
	ids, err := USBIDCandidates(s)
	if err != nil {
		return USBID{}, err
	}
	return ids[0], nil
}

// USBIDCandidates returns every reading of s, hex before decimal. Strings
// such as "1208:3605" are valid in both bases.
func USBIDCandidates(s string) ([]USBID, error) {
	norm := strings.TrimSpace(strings.ToUpper(s))
	norm = strings.NewReplacer("VID_", "", "PID_", "", "VID", "", "PID", "", "&", ":", "/", ":").Replace(norm)

	parts := strings.FieldsFunc(norm, func(r rune) bool { return r == ':' || r == ' ' })
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid usb id %q: expected VID:PID", s)
	}

	var ids []USBID
	for _, base := range []int{16, 10} {
		vid, err1 := parseUSBPart(parts[0], base)
		pid, err2 := parseUSBPart(parts[1], base)
		if err1 != nil || err2 != nil {
			continue
		}
		id := USBID{VID: vid, PID: pid}
		if len(ids) == 0 || ids[0] != id {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("invalid usb id %q", s)
	}
	return ids, nil
}

func parseUSBPart(s string, base int) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0X")
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	v, err := strconv.ParseUint(s, base, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// Matches reports whether the descriptor is the USB device named by id
func (id USBID) Matches(d Descriptor) bool {
	return d.Connection.Kind == ConnUSB && d.Connection.VID == id.VID && d.Connection.PID == id.PID
}
