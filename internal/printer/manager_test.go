package printer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereceipt/receipt-dispatcher/internal/registry"
)

type fakeEnumerator struct {
	name       string
	scopes     []Scope
	candidates []Candidate
	err        error
	calls      int
}

func (f *fakeEnumerator) Name() string    { return f.name }
func (f *fakeEnumerator) Scopes() []Scope { return f.scopes }

func (f *fakeEnumerator) Enumerate(ctx context.Context) ([]Candidate, error) {
	f.calls++
	return f.candidates, f.err
}

type fakeStatus struct {
	bits    map[string]uint32
	usb     map[USBID]bool
	reached map[string]bool
}

func (f *fakeStatus) SpoolerStatus(ctx context.Context, queue string) (uint32, error) {
	bits, ok := f.bits[queue]
	if !ok {
		return 0, errors.New("no such queue")
	}
	return bits, nil
}

func (f *fakeStatus) USBPresent(ctx context.Context, vid, pid uint16) bool {
	return f.usb[USBID{vid, pid}]
}

func (f *fakeStatus) Probe(ctx context.Context, addr string, timeout time.Duration) error {
	if f.reached[addr] {
		return nil
	}
	return errors.New("refused")
}

func usbEnumerator() *fakeEnumerator {
	return &fakeEnumerator{
		name:   "usb",
		scopes: []Scope{ScopeUSB},
		candidates: []Candidate{
			{Prefix: PrefixUSB, DisplayName: "EPSON TM-T20II", Connection: Connection{Kind: ConnUSB, VID: 0x04B8, PID: 0x0E15}},
			{Prefix: PrefixUSB, DisplayName: "Webcam", Connection: Connection{Kind: ConnUSB, VID: 0x1234, PID: 0x0001}},
			{Prefix: PrefixUSB, DisplayName: "Unknown", Connection: Connection{Kind: ConnUSB, VID: 0x28E9, PID: 0x0289}},
		},
	}
}

func spoolerEnumerator() *fakeEnumerator {
	return &fakeEnumerator{
		name:   "spooler",
		scopes: []Scope{ScopeUSB, ScopeNetwork, ScopeLocal},
		candidates: []Candidate{
			{Prefix: PrefixLocal, DisplayName: "Office", DriverName: "HP LaserJet", Connection: Connection{Kind: ConnSpooler, QueueName: "Office"}},
			{Prefix: PrefixLocal, DisplayName: "Kitchen", DriverName: "EPSON TM-T88V Receipt", Connection: Connection{Kind: ConnSpooler, QueueName: "Kitchen"}},
			{Prefix: PrefixNetwork, DisplayName: "Kitchen", DriverName: "EPSON TM-T88V Receipt", Connection: Connection{Kind: ConnNetwork, QueueName: "Kitchen", Host: "10.0.0.5", Port: 9100}},
		},
	}
}

func TestDiscover_NoEnumerators(t *testing.T) {
	m := NewManager(WithEnumerators())

	got := m.Discover(context.Background(), ScopeNetwork)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDiscover_FiltersReceipts(t *testing.T) {
	m := NewManager(WithEnumerators(usbEnumerator(), spoolerEnumerator()))

	usb := m.Discover(context.Background(), ScopeUSB)
	require.Len(t, usb, 2)
	assert.Equal(t, "usb_0", usb[0].ID)
	assert.Equal(t, "EPSON TM-T20II", usb[0].DisplayName)
	// known vendor with no keyword in its name
	assert.Equal(t, "usb_2", usb[1].ID)
	assert.Equal(t, KindReceipt, usb[1].Kind)

	local := m.Discover(context.Background(), ScopeLocal)
	require.Len(t, local, 1)
	assert.Equal(t, "local_1", local[0].ID)
	assert.Equal(t, 48, local[0].PaperWidth)

	network := m.Discover(context.Background(), ScopeNetwork)
	require.Len(t, network, 1)
	assert.Equal(t, "net_0", network[0].ID)
	assert.Equal(t, "10.0.0.5", network[0].Connection.Host)
}

func TestDiscoverAll_SameIds(t *testing.T) {
	m := NewManager(WithEnumerators(usbEnumerator(), spoolerEnumerator()))

	all := m.DiscoverAll(context.Background())
	require.Len(t, all, 6)

	byID := make(map[string]Descriptor)
	for _, d := range all {
		byID[d.ID] = d
	}
	require.Contains(t, byID, "usb_1")
	assert.Equal(t, KindGeneric, byID["usb_1"].Kind)
	assert.Equal(t, KindGeneric, byID["local_0"].Kind)

	for _, d := range m.Discover(context.Background(), ScopeAll) {
		assert.Equal(t, byID[d.ID].IdentityKey(), d.IdentityKey())
	}
}

func TestDiscover_EnumeratorErrorYieldsEmpty(t *testing.T) {
	var observed []error
	m := NewManager(
		WithEnumerators(&fakeEnumerator{name: "broken", scopes: []Scope{ScopeUSB}, err: errors.New("libusb missing")}),
		WithObserver(func(scope Scope, found int, err error) { observed = append(observed, err) }),
	)

	got := m.Discover(context.Background(), ScopeUSB)
	assert.Empty(t, got)
	require.Len(t, observed, 2)
	assert.Error(t, observed[0])
	assert.NoError(t, observed[1])
}

func TestDiscover_SkipsEnumeratorsOutOfScope(t *testing.T) {
	usb := usbEnumerator()
	m := NewManager(WithEnumerators(usb, spoolerEnumerator()))

	m.Discover(context.Background(), ScopeLocal)
	assert.Equal(t, 0, usb.calls)
}

func TestDiscover_PaperWidth(t *testing.T) {
	m := NewManager(WithEnumerators(usbEnumerator()), WithPaperWidth(32))
	for _, d := range m.Discover(context.Background(), ScopeUSB) {
		assert.Equal(t, 32, d.PaperWidth)
	}
}

func TestFind(t *testing.T) {
	m := NewManager(WithEnumerators(usbEnumerator(), spoolerEnumerator()))

	d, ok := m.Find(context.Background(), "local_1")
	require.True(t, ok)
	assert.Equal(t, "Kitchen", d.Connection.QueueName)

	_, ok = m.Find(context.Background(), "usb_99")
	assert.False(t, ok)
}

func TestFind_OnlyEnumeratesTheIDScope(t *testing.T) {
	usb := usbEnumerator()
	spooler := spoolerEnumerator()
	serial := &fakeEnumerator{
		name: "serial",
		candidates: []Candidate{{
			Prefix:     PrefixSerial,
			Connection: Connection{Kind: ConnSerial, Device: "/dev/ttyS0"},
		}},
	}
	m := NewManager(WithEnumerators(usb, spooler, serial))

	d, ok := m.Find(context.Background(), "local_1")
	require.True(t, ok)
	assert.Equal(t, 0, usb.calls)
	assert.Equal(t, 0, serial.calls)

	full := m.DiscoverAll(context.Background())
	assert.Contains(t, full, d, "ids agree with a full pass")

	_, ok = m.Find(context.Background(), "serial_0")
	assert.True(t, ok)
	assert.Equal(t, 2, serial.calls)
}

func TestScopeForID(t *testing.T) {
	assert.Equal(t, ScopeUSB, ScopeForID("usb_3"))
	assert.Equal(t, ScopeNetwork, ScopeForID("net_0"))
	assert.Equal(t, ScopeLocal, ScopeForID("local_1"))
	assert.Equal(t, ScopeAll, ScopeForID("serial_0"))
	assert.Equal(t, ScopeAll, ScopeForID("bogus"))
}

func TestFindUSB(t *testing.T) {
	m := NewManager(WithEnumerators(usbEnumerator()))

	d, ok := m.FindUSB(context.Background(), USBID{0x28E9, 0x0289})
	require.True(t, ok)
	assert.Equal(t, "usb_2", d.ID)

	d, ok = m.FindUSB(context.Background())
	require.True(t, ok)
	assert.Equal(t, "usb_0", d.ID)

	_, ok = m.FindUSB(context.Background(), USBID{0x1234, 0x0001})
	assert.False(t, ok, "generic devices are not receipt printers")
}

func TestNetworkEnumerator(t *testing.T) {
	reg, err := registry.New("")
	require.NoError(t, err)
	_, err = reg.Add("10.0.0.8", 0, "", "")
	require.NoError(t, err)
	_, err = reg.Add("10.0.0.9", 9101, "Bar", "Generic")
	require.NoError(t, err)

	m := NewManager(WithEnumerators(&NetworkEnumerator{Source: reg}))
	got := m.Discover(context.Background(), ScopeNetwork)
	require.Len(t, got, 2)

	assert.Equal(t, "net_0", got[0].ID)
	assert.Equal(t, "10.0.0.8:9100", got[0].DisplayName)
	assert.Equal(t, "net_1", got[1].ID)
	assert.Equal(t, "Bar", got[1].DisplayName)
	assert.Equal(t, 9101, got[1].Connection.Port)
	assert.Equal(t, KindReceipt, got[1].Kind)
}

func TestQueryStatus(t *testing.T) {
	status := &fakeStatus{
		bits:    map[string]uint32{"Kitchen": StatusBitBusy, "Jammed": StatusBitOffline | StatusBitError},
		usb:     map[USBID]bool{{0x04B8, 0x0E15}: true},
		reached: map[string]bool{"10.0.0.5:9100": true},
	}
	m := NewManager(WithEnumerators(), WithStatusSource(status))
	ctx := context.Background()

	assert.Equal(t, StatusOnline, m.QueryStatus(ctx, Descriptor{Connection: Connection{Kind: ConnNetwork, Host: "10.0.0.5"}}))
	assert.Equal(t, StatusOffline, m.QueryStatus(ctx, Descriptor{Connection: Connection{Kind: ConnNetwork, Host: "10.0.0.6", Port: 9100}}))
	assert.Equal(t, StatusBusy, m.QueryStatus(ctx, Descriptor{Connection: Connection{Kind: ConnSpooler, QueueName: "Kitchen"}}))
	assert.Equal(t, StatusOffline, m.QueryStatus(ctx, Descriptor{Connection: Connection{Kind: ConnSpooler, QueueName: "Jammed"}}))
	assert.Equal(t, StatusOffline, m.QueryStatus(ctx, Descriptor{Connection: Connection{Kind: ConnSpooler, QueueName: "Missing"}}))
	assert.Equal(t, StatusOnline, m.QueryStatus(ctx, Descriptor{Connection: Connection{Kind: ConnUSB, VID: 0x04B8, PID: 0x0E15}}))
	assert.Equal(t, StatusOffline, m.QueryStatus(ctx, Descriptor{Connection: Connection{Kind: ConnUSB, VID: 0x04B8, PID: 0x0202}}))

	// spooler-backed network printer with no host reads the queue
	assert.Equal(t, StatusBusy, m.QueryStatus(ctx, Descriptor{Connection: Connection{Kind: ConnNetwork, QueueName: "Kitchen"}}))
}

func TestCapabilities(t *testing.T) {
	status := &fakeStatus{bits: map[string]uint32{"Kitchen": StatusBitPaperOut}}
	m := NewManager(WithEnumerators(), WithStatusSource(status))

	c := m.Capabilities(context.Background(), Descriptor{Connection: Connection{Kind: ConnSpooler, QueueName: "Kitchen"}})
	assert.Equal(t, StatusPaperOut, c.Status)
	assert.False(t, c.HasPaper)
	require.NotNil(t, c.Raw)

	c = m.Capabilities(context.Background(), Descriptor{Connection: Connection{Kind: ConnNetwork, Host: "10.0.0.9"}})
	assert.Equal(t, StatusOffline, c.Status)
	assert.False(t, c.Online)
	assert.Nil(t, c.Raw)
}

func TestMonitor_Check(t *testing.T) {
	usb := usbEnumerator()
	m := NewManager(WithEnumerators(usb))
	mon := NewMonitor(m, time.Hour, nil)

	var addedNames, removedNames []string
	mon.OnAdded(func(d Descriptor) { addedNames = append(addedNames, d.DisplayName) })
	mon.OnRemoved(func(d Descriptor) { removedNames = append(removedNames, d.DisplayName) })

	added, removed := mon.Check(context.Background())
	assert.Len(t, added, 2)
	assert.Empty(t, removed)

	// the Epson is unplugged; the remaining device shifts to usb_0 but keeps
	// its identity
	usb.candidates = usb.candidates[1:]
	added, removed = mon.Check(context.Background())
	assert.Empty(t, added)
	require.Len(t, removed, 1)
	assert.Equal(t, "EPSON TM-T20II", removed[0].DisplayName)

	assert.ElementsMatch(t, []string{"EPSON TM-T20II", "Unknown"}, addedNames)
	assert.Equal(t, []string{"EPSON TM-T20II"}, removedNames)
}

func TestMonitor_StartStop(t *testing.T) {
	usb := usbEnumerator()
	m := NewManager(WithEnumerators(usb))
	mon := NewMonitor(m, time.Hour, nil)

	done := make(chan struct{})
	mon.OnAdded(func(d Descriptor) {
		if d.ID == "usb_0" {
			close(done)
		}
	})
	mon.Start(context.Background())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass did not run")
	}
	mon.Stop()
}
