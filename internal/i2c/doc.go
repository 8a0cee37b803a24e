// Package i2c provides a register transport over the Linux i2c-dev interface.
//
// A Bus opens /dev/i2c-N once, selects the target address with the
// I2C_SLAVE ioctl and then exchanges single-register transactions:
//
//	write: [reg, value]
//	read:  [reg] then read one byte
//
// Failures are returned as *tas5805m.TransportError with the errno mapped onto
// a bus code, so the driver can record it for diagnostics.
//
// # Thread Safety
//
// Bus is safe for concurrent use; a mutex guards the file descriptor so a
// register read is never split by another transaction.
//
// On platforms other than Linux, Open returns ErrUnsupported.
package i2c
