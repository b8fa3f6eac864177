// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ens160

import "fmt"

const (
	// DefaultAddress is the I²C address of the device with the ADDR pin
	// pulled low, which is how most breakout boards ship.
	DefaultAddress uint16 = 0x52
	// AlternateAddress is the I²C address with the ADDR pin pulled high.
	AlternateAddress uint16 = 0x53
)

// partID is the identification word every ENS160 reports in REG_PART_ID.
const partID uint16 = 0x0160

// Register addresses per the ENS160 datasheet, section 16.
const (
	regPartID       byte = 0x00 // 2 bytes, little endian
	regOpMode       byte = 0x10
	regConfig       byte = 0x11
	regCommand      byte = 0x12
	regTempIn       byte = 0x13 // 2 bytes, Kelvin * 64
	regRHIn         byte = 0x15 // 2 bytes, %RH * 512
	regDeviceStatus byte = 0x20
	regDataAQI      byte = 0x21
	regDataTVOC     byte = 0x22 // 2 bytes, ppb
	regDataECO2     byte = 0x24 // 2 bytes, ppm
	regDataT        byte = 0x30 // 2 bytes, compensation readback
	regDataRH       byte = 0x32 // 2 bytes, compensation readback
	regDataMISR     byte = 0x38
	regGPRWrite     byte = 0x40 // 8 general purpose write registers
	regGPRRead      byte = 0x48 // 8 general purpose read registers
)

// Commands accepted by REG_COMMAND while the device is in Idle mode.
const (
	cmdNOP       byte = 0x00
	cmdGetAppVer byte = 0x0e
	cmdClearGPR  byte = 0xcc
)

// OpMode is one of the operating modes of the device. Only Standard runs the
// hotplates and produces measurements; Idle keeps the registers accessible
// without heating, DeepSleep is the low power shelf state.
type OpMode byte

const (
	DeepSleep OpMode = 0x00
	Idle      OpMode = 0x01
	Standard  OpMode = 0x02

	// opModeReset reboots the device. It is not a resting state and is only
	// written during initialization.
	opModeReset OpMode = 0xf0
)

func (m OpMode) String() string {
	switch m {
	case DeepSleep:
		return "deep sleep"
	case Idle:
		return "idle"
	case Standard:
		return "standard"
	default:
		return fmt.Sprintf("OpMode(%#02x)", byte(m))
	}
}

// Status is a snapshot of the DEVICE_STATUS register. It is read fresh on
// every poll and never cached across polls.
type Status byte

const (
	// statusRunning (STATAS) is set while an operating mode is running.
	statusRunning Status = 1 << 7
	// statusError (STATER) flags an error condition such as an invalid
	// operating mode request.
	statusError Status = 1 << 6
	// statusNewData (NEWDAT) is set when the AQI/TVOC/eCO2 registers hold a
	// measurement that has not been read yet.
	statusNewData Status = 1 << 1
	// statusNewGPR (NEWGPR) is set when the general purpose read registers
	// hold fresh data, e.g. a command answer.
	statusNewGPR Status = 1 << 0

	validityShift       = 2
	validityMask Status = 3 << validityShift
)

// Running reports whether an operating mode is active.
func (s Status) Running() bool { return s&statusRunning != 0 }

// Error reports whether the device flags an error condition.
func (s Status) Error() bool { return s&statusError != 0 }

// NewData reports whether an unread measurement is available.
func (s Status) NewData() bool { return s&statusNewData != 0 }

// NewGPR reports whether the general purpose read registers hold fresh data.
func (s Status) NewGPR() bool { return s&statusNewGPR != 0 }

// Validity returns the validity flag of the current measurement data.
func (s Status) Validity() Validity { return Validity(s&validityMask) >> validityShift }

// Validity qualifies the measurement data as reported by the chip itself.
type Validity byte

const (
	// ValidityNormal means the device operates within its accuracy window.
	ValidityNormal Validity = 0
	// ValidityWarmUp is reported during the first minutes after entering an
	// operating mode.
	ValidityWarmUp Validity = 1
	// ValidityInitialStartup is reported during the one hour conditioning
	// phase of a factory fresh device.
	ValidityInitialStartup Validity = 2
	// ValidityInvalid means the output registers must not be trusted.
	ValidityInvalid Validity = 3
)

func (v Validity) String() string {
	switch v {
	case ValidityNormal:
		return "normal"
	case ValidityWarmUp:
		return "warm-up"
	case ValidityInitialStartup:
		return "initial start-up"
	case ValidityInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("Validity(%d)", byte(v))
	}
}
