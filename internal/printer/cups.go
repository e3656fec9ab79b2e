package printer

import (
	"bufio"
	"net/url"
	"strconv"
	"strings"
)

// cupsQueue is one line of `lpstat -v`
type cupsQueue struct {
	Name string
	URI  string
}

// parseLpstatDevices parses `lpstat -v` output:
//
//	device for EPSON_TM_T20: usb://EPSON/TM-T20II?serial=X4P1234
//	device for Kitchen: socket://192.168.1.50:9100
func parseLpstatDevices(out string) []cupsQueue {
	var queues []cupsQueue
	s := bufio.NewScanner(strings.NewReader(out))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		rest, ok := strings.CutPrefix(line, "device for ")
		if !ok {
			continue
		}
		name, uri, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}
		queues = append(queues, cupsQueue{Name: strings.TrimSpace(name), URI: strings.TrimSpace(uri)})
	}
	return queues
}

// parseLpstatStatus maps `lpstat -p <queue>` output onto spooler status bits
func parseLpstatStatus(out string) uint32 {
	lower := strings.ToLower(out)
	var bits uint32
	if strings.Contains(lower, "disabled") {
		bits |= StatusBitOffline
	}
	if strings.Contains(lower, "now printing") {
		bits |= StatusBitBusy
	}
	if strings.Contains(lower, "paper") && (strings.Contains(lower, "out") || strings.Contains(lower, "empty")) {
		bits |= StatusBitPaperOut
	}
	return bits
}

// cupsCandidates turns CUPS queues into candidates. Every queue is local; usb
// and network backends also produce USB or network candidates.
func cupsCandidates(queues []cupsQueue) []Candidate {
	var candidates []Candidate
	for _, q := range queues {
		spool := Connection{QueueName: q.Name, DriverName: q.URI, PortName: q.URI}
		base := Candidate{DisplayName: q.Name, DriverName: q.URI}

		local := base
		local.Prefix = PrefixLocal
		local.Connection = spool
		local.Connection.Kind = ConnSpooler
		candidates = append(candidates, local)

		u, err := url.Parse(q.URI)
		if err != nil {
			continue
		}
		switch u.Scheme {
		case "usb":
			usb := base
			usb.Prefix = PrefixUSB
			usb.Connection = spool
			usb.Connection.Kind = ConnUSB
			usb.Connection.Serial = u.Query().Get("serial")
			candidates = append(candidates, usb)
		case "socket", "lpd", "ipp", "ipps", "http", "https":
			network := base
			network.Prefix = PrefixNetwork
			network.Connection = spool
			network.Connection.Kind = ConnNetwork
			// Only raw socket queues can be written directly over TCP
			if u.Scheme == "socket" {
				network.Connection.Host = u.Hostname()
				network.Connection.Port = DefaultNetworkPort
				if p, err := strconv.Atoi(u.Port()); err == nil {
					network.Connection.Port = p
				}
			}
			candidates = append(candidates, network)
		}
	}
	return candidates
}
