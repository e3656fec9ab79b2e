// Package winspool wraps the Windows print spooler API used for RAW jobs,
// printer enumeration and status. It is empty on other platforms.
package winspool
