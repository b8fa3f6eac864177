package ens160

import "fmt"

// WrongModeError is returned by Poll when the device is not in Standard
// mode. It is a caller protocol violation and is reported without touching
// the bus.
type WrongModeError struct {
	Mode OpMode
}

func (e *WrongModeError) Error() string {
	return fmt.Sprintf("ENS160 cannot measure in %s mode.", e.Mode)
}

// TransitionError is returned when the device did not confirm an operating
// mode change after the bounded number of attempts.
type TransitionError struct {
	Target OpMode
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("ENS160 rejected the transition to %s mode.", e.Target)
}

// InvalidOutputError is returned when the chip flags its own output as
// invalid. No data is read in that case; the caller may retry later.
type InvalidOutputError struct{}

func (e *InvalidOutputError) Error() string {
	return "ENS160 reports invalid output data."
}

// DeviceFailureError is returned when the STATER bit of the status register
// is set.
type DeviceFailureError struct {
	Status Status
}

func (e *DeviceFailureError) Error() string {
	return fmt.Sprintf("ENS160 reports an error condition (status %#02x).", byte(e.Status))
}

// IdentificationError is returned by NewI2C when the part on the bus does
// not identify as an ENS160.
type IdentificationError struct {
	PartID uint16
}

func (e *IdentificationError) Error() string {
	return fmt.Sprintf("The part on the given bus and address is not an ENS160 (part id %#04x).", e.PartID)
}

// ReadTimeoutError is returned by Sense when no new measurement arrived
// within the configured timeout.
type ReadTimeoutError struct{}

func (e *ReadTimeoutError) Error() string {
	return "Read timeout. ENS160 did not produce a measurement in time."
}

// DataCorruptionError is returned when MISR validation is enabled and the
// measurement payload did not match the chip's data integrity register.
type DataCorruptionError struct{}

func (e *DataCorruptionError) Error() string {
	return "Data is corrupt. The MISR checksums did not match."
}
