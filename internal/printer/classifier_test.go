package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsThermal(t *testing.T) {
	tests := []struct {
		driver, display string
		want            bool
	}{
		{"EPSON TM-T88", "Receipt1", true},
		{"HP LaserJet", "Office", false},
		{"Generic / Text Only", "Kitchen POS", true},
		{"", "iMin Printer", true},
		{"STAR TSP100", "", true},
		{"Microsoft Print to PDF", "PDF", false},
		{"", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsThermal(tt.driver, tt.display), "%q / %q", tt.driver, tt.display)
	}
}

func TestIsThermal_CaseInsensitive(t *testing.T) {
	assert.True(t, IsThermal("thermal", ""))
	assert.True(t, IsThermal("THERMAL", ""))
	assert.True(t, IsThermal("", "Citizen CT-S310"))
}

func TestIsReceiptVendor(t *testing.T) {
	assert.True(t, IsReceiptVendor(0x04B8))
	assert.True(t, IsReceiptVendor(0x28E9))
	assert.False(t, IsReceiptVendor(0x1234))
	assert.True(t, IsReceiptVendor(0x1234, 0x1234))
}

func TestPaperWidth(t *testing.T) {
	assert.Equal(t, 32, PaperWidth("mm58"))
	assert.Equal(t, 32, PaperWidth("58mm"))
	assert.Equal(t, 48, PaperWidth("mm80"))
	assert.Equal(t, 48, PaperWidth(""))
	assert.Equal(t, 48, PaperWidth("a4"))
}

func TestClassifyPort(t *testing.T) {
	assert.Equal(t, PortUSB, ClassifyPort("USB001"))
	assert.Equal(t, PortUSB, ClassifyPort("usb002"))
	assert.Equal(t, PortNetwork, ClassifyPort("IP_192.168.1.50"))
	assert.Equal(t, PortNetwork, ClassifyPort("TCPMON:"))
	assert.Equal(t, PortLocal, ClassifyPort("LPT1:"))
	assert.Equal(t, PortLocal, ClassifyPort("PORTPROMPT:"))
}

func TestHostFromPort(t *testing.T) {
	assert.Equal(t, "192.168.1.50", HostFromPort("IP_192.168.1.50"))
	assert.Equal(t, "10.0.0.7", HostFromPort("10.0.0.7_1"))
	assert.Equal(t, "10.0.0.7", HostFromPort("10.0.0.7:9100"))
	assert.Equal(t, "", HostFromPort("USB001"))
	assert.Equal(t, "", HostFromPort("IP_printer.local"))
}

func TestStatusFromBits(t *testing.T) {
	assert.Equal(t, StatusOnline, StatusFromBits(0))
	assert.Equal(t, StatusOffline, StatusFromBits(StatusBitOffline|StatusBitPaperOut|StatusBitBusy|StatusBitError))
	assert.Equal(t, StatusPaperOut, StatusFromBits(StatusBitPaperOut|StatusBitBusy))
	assert.Equal(t, StatusBusy, StatusFromBits(StatusBitBusy|StatusBitError))
	assert.Equal(t, StatusError, StatusFromBits(StatusBitError))
	// paused alone is not a status
	assert.Equal(t, StatusOnline, StatusFromBits(StatusBitPaused))
}

func TestCapabilitiesFromBits(t *testing.T) {
	c := CapabilitiesFromBits(StatusBitPaperOut | StatusBitPaused)
	assert.Equal(t, StatusPaperOut, c.Status)
	assert.True(t, c.Online)
	assert.False(t, c.HasPaper)
	assert.True(t, c.Paused)
	assert.False(t, c.Busy)
	if assert.NotNil(t, c.Raw) {
		assert.Equal(t, StatusBitPaperOut|StatusBitPaused, *c.Raw)
	}
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("")
	assert.NoError(t, err)
	assert.Equal(t, ScopeAll, s)

	s, err = ParseScope("network")
	assert.NoError(t, err)
	assert.Equal(t, ScopeNetwork, s)

	_, err = ParseScope("bluetooth")
	assert.Error(t, err)
}

func TestIdentityKey(t *testing.T) {
	usb := Connection{Kind: ConnUSB, VID: 0x04B8, PID: 0x0E15, Serial: "X1"}
	assert.Equal(t, "usb:04B8:0E15:X1", usb.IdentityKey())

	net := Connection{Kind: ConnNetwork, Host: "10.0.0.5"}
	assert.Equal(t, "network:10.0.0.5:9100", net.IdentityKey())
	assert.Equal(t, "10.0.0.5:9100", Descriptor{Connection: net}.LockKey())

	spool := Connection{Kind: ConnSpooler, QueueName: "Kitchen"}
	assert.Equal(t, "local:Kitchen", Descriptor{Connection: spool}.LockKey())
}
