package serialport

import (
	"errors"

	"golang.org/x/sys/unix"
)

var (
	ErrDeviceNotFound   = errors.New("serial device not found")
	ErrPermissionDenied = errors.New("permission denied accessing serial device")
	ErrDeviceInUse      = errors.New("serial device already in use")
	ErrInvalidBaudRate  = errors.New("invalid baud rate")
	ErrInvalidConfig    = errors.New("invalid serial configuration")
	ErrPortClosed       = errors.New("serial port is closed")
	ErrReadTimeout      = errors.New("read operation timed out")
	ErrOverflow         = errors.New("read limit reached before delimiter")

	// ErrDisconnected is matched by errors from a device that went away
	// (unplugged USB adapter, hung-up tty).
	ErrDisconnected = errors.New("serial device disconnected")
)

// classifyOpenError maps errno values from open(2) onto the package errors
func classifyOpenError(err error) error {
	switch {
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENXIO), errors.Is(err, unix.ENODEV):
		return ErrDeviceNotFound
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return ErrPermissionDenied
	case errors.Is(err, unix.EBUSY):
		return ErrDeviceInUse
	default:
		return err
	}
}

// disconnectError wraps I/O errnos that mean the device is gone
type disconnectError struct {
	err error
}

func (e *disconnectError) Error() string { return ErrDisconnected.Error() + ": " + e.err.Error() }

func (e *disconnectError) Unwrap() []error { return []error{ErrDisconnected, e.err} }

func classifyIOError(err error) error {
	switch {
	case errors.Is(err, unix.EIO), errors.Is(err, unix.ENXIO),
		errors.Is(err, unix.ENODEV), errors.Is(err, unix.EBADF):
		return &disconnectError{err: err}
	default:
		return err
	}
}
