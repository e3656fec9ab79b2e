//go:build windows

package winspool

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	enumLocal       = 0x00000002
	enumConnections = 0x00000004
)

var (
	modwinspool = windows.NewLazySystemDLL("winspool.drv")

	procEnumPrintersW     = modwinspool.NewProc("EnumPrintersW")
	procOpenPrinterW      = modwinspool.NewProc("OpenPrinterW")
	procGetPrinterW       = modwinspool.NewProc("GetPrinterW")
	procClosePrinter      = modwinspool.NewProc("ClosePrinter")
	procStartDocPrinterW  = modwinspool.NewProc("StartDocPrinterW")
	procStartPagePrinter  = modwinspool.NewProc("StartPagePrinter")
	procWritePrinter      = modwinspool.NewProc("WritePrinter")
	procEndPagePrinter    = modwinspool.NewProc("EndPagePrinter")
	procEndDocPrinter     = modwinspool.NewProc("EndDocPrinter")
)

// printerInfo2 mirrors PRINTER_INFO_2W
type printerInfo2 struct {
	ServerName         *uint16
	PrinterName        *uint16
	ShareName          *uint16
	PortName           *uint16
	DriverName         *uint16
	Comment            *uint16
	Location           *uint16
	DevMode            uintptr
	SepFile            *uint16
	PrintProcessor     *uint16
	Datatype           *uint16
	Parameters         *uint16
	SecurityDescriptor uintptr
	Attributes         uint32
	Priority           uint32
	DefaultPriority    uint32
	StartTime          uint32
	UntilTime          uint32
	Status             uint32
	Jobs               uint32
	AveragePPM         uint32
}

// docInfo1 mirrors DOC_INFO_1W
type docInfo1 struct {
	DocName    *uint16
	OutputFile *uint16
	Datatype   *uint16
}

// Printer is one spooler queue
type Printer struct {
	Name   string
	Driver string
	Port   string
	Status uint32
}

// Handle is an open printer handle
type Handle syscall.Handle

func call(p *windows.LazyProc, args ...uintptr) (uintptr, error) {
	if err := p.Find(); err != nil {
		return 0, err
	}
	r1, _, lastErr := p.Call(args...)
	if r1 == 0 {
		if lastErr == nil || errors.Is(lastErr, windows.ERROR_SUCCESS) {
			lastErr = syscall.EINVAL
		}
		return 0, fmt.Errorf("%s: %w", p.Name, lastErr)
	}
	return r1, nil
}

// Enum lists local and connected printers (level 2)
func Enum() ([]Printer, error) {
	var needed, returned uint32
	flags := uintptr(enumLocal | enumConnections)

	procEnumPrintersW.Call(flags, 0, 2, 0, 0,
		uintptr(unsafe.Pointer(&needed)), uintptr(unsafe.Pointer(&returned)))
	if needed == 0 {
		return nil, nil
	}

	buf := make([]byte, needed)
	if _, err := call(procEnumPrintersW, flags, 0, 2,
		uintptr(unsafe.Pointer(&buf[0])), uintptr(needed),
		uintptr(unsafe.Pointer(&needed)), uintptr(unsafe.Pointer(&returned))); err != nil {
		return nil, err
	}
	if returned == 0 {
		return nil, nil
	}

	infos := unsafe.Slice((*printerInfo2)(unsafe.Pointer(&buf[0])), returned)
	printers := make([]Printer, 0, returned)
	for _, info := range infos {
		printers = append(printers, Printer{
			Name:   windows.UTF16PtrToString(info.PrinterName),
			Driver: windows.UTF16PtrToString(info.DriverName),
			Port:   windows.UTF16PtrToString(info.PortName),
			Status: info.Status,
		})
	}
	return printers, nil
}

// Open opens a printer queue by name
func Open(name string) (Handle, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, err
	}
	var h syscall.Handle
	if _, err := call(procOpenPrinterW, uintptr(unsafe.Pointer(p)), uintptr(unsafe.Pointer(&h)), 0); err != nil {
		return 0, err
	}
	return Handle(h), nil
}

// Close closes a printer handle
func Close(h Handle) error {
	_, err := call(procClosePrinter, uintptr(h))
	return err
}

// Status returns the PRINTER_INFO_2 status bitmask of a queue
func Status(name string) (uint32, error) {
	h, err := Open(name)
	if err != nil {
		return 0, err
	}
	defer Close(h)

	var needed uint32
	procGetPrinterW.Call(uintptr(h), 2, 0, 0, uintptr(unsafe.Pointer(&needed)))
	if needed == 0 {
		return 0, fmt.Errorf("GetPrinterW: no data for %s", name)
	}

	buf := make([]byte, needed)
	if _, err := call(procGetPrinterW, uintptr(h), 2,
		uintptr(unsafe.Pointer(&buf[0])), uintptr(needed), uintptr(unsafe.Pointer(&needed))); err != nil {
		return 0, err
	}
	info := (*printerInfo2)(unsafe.Pointer(&buf[0]))
	return info.Status, nil
}

// StartRawDoc starts a document with the RAW datatype and returns the job id
func StartRawDoc(h Handle, docName string) (uint32, error) {
	name, err := windows.UTF16PtrFromString(docName)
	if err != nil {
		return 0, err
	}
	raw, _ := windows.UTF16PtrFromString("RAW")
	info := docInfo1{DocName: name, Datatype: raw}

	job, err := call(procStartDocPrinterW, uintptr(h), 1, uintptr(unsafe.Pointer(&info)))
	if err != nil {
		return 0, err
	}
	return uint32(job), nil
}

// StartPage starts a page in the current document
func StartPage(h Handle) error {
	_, err := call(procStartPagePrinter, uintptr(h))
	return err
}

// Write submits p as page data and returns the byte count the spooler accepted
func Write(h Handle, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var written uint32
	_, err := call(procWritePrinter, uintptr(h), uintptr(unsafe.Pointer(&p[0])), uintptr(len(p)),
		uintptr(unsafe.Pointer(&written)))
	return int(written), err
}

// EndPage ends the current page
func EndPage(h Handle) error {
	_, err := call(procEndPagePrinter, uintptr(h))
	return err
}

// EndDoc ends the current document
func EndDoc(h Handle) error {
	_, err := call(procEndDocPrinter, uintptr(h))
	return err
}
