// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ens160

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// AQI is the UBA air quality index reported by the chip, an ordinal from
// 1 (excellent) to 5 (unhealthy).
type AQI uint8

func (a AQI) String() string {
	switch a {
	case 1:
		return "1 (excellent)"
	case 2:
		return "2 (good)"
	case 3:
		return "3 (moderate)"
	case 4:
		return "4 (poor)"
	case 5:
		return "5 (unhealthy)"
	default:
		return strconv.Itoa(int(a))
	}
}

// TVOC is a total volatile organic compounds concentration in ppb.
type TVOC uint16

func (t TVOC) String() string {
	return strconv.Itoa(int(t)) + "ppb"
}

// ECO2 is an equivalent CO2 concentration in ppm.
type ECO2 uint16

func (c ECO2) String() string {
	return strconv.Itoa(int(c)) + "ppm"
}

// AirQuality is one decoded measurement snapshot. It is immutable once
// produced.
type AirQuality struct {
	AQI  AQI
	TVOC TVOC
	ECO2 ECO2
	// Time the snapshot was read from the device.
	Time time.Time
}

func (aq *AirQuality) String() string {
	return fmt.Sprintf("AQI: %s TVOC: %s eCO2: %s", aq.AQI.String(), aq.TVOC.String(), aq.ECO2.String())
}

// Level qualifies how trustworthy the current readings are. It is advisory:
// the driver keeps serving measurements either way, the caller decides
// whether to discard early ones.
type Level int

const (
	// Nominal means the device is warmed up and within specified accuracy.
	Nominal Level = iota
	// WarmingUp is reported during the first three minutes after entering
	// Standard mode.
	WarmingUp
	// Uncertain is reported while the device is not measuring at all, or
	// during the initial conditioning phase of a factory fresh sensor,
	// which lasts far longer than a routine warm-up.
	Uncertain
)

func (l Level) String() string {
	switch l {
	case Nominal:
		return "nominal"
	case WarmingUp:
		return "warming up"
	default:
		return "uncertain"
	}
}

const (
	// Settle time after a reset pulse, per datasheet.
	resetDelay = 10 * time.Millisecond
	// Delay between attempts to confirm an operating mode change.
	modeSettle   = 10 * time.Millisecond
	modeAttempts = 3
	// Warm-up interval after entering Standard mode, datasheet chapter 10.
	warmUpPeriod = 3 * time.Minute
	// Bound on waiting for a command answer in the GPR registers.
	gprTimeout = 100 * time.Millisecond
)

// DATA_MISR polynomial, x^8 + x^5 + x^4 + 1 with the x^8 term dropped.
const misrPoly = 0x3c

// Opts holds the configuration options for the device.
type Opts struct {
	// Temperature seeds the chip's compensation input at initialization.
	// Feed updated values from a co-located sensor with SetAmbient for best
	// accuracy.
	Temperature physic.Temperature
	// Humidity seeds the chip's compensation input at initialization.
	Humidity physic.RelativeHumidity
	// ReadTimeout bounds a blocking Sense call. The device completes one
	// conversion per second in Standard mode. 0 means no timeout.
	ReadTimeout time.Duration
	// PollInterval is the delay between status polls within Sense. Leave 0
	// to use the default.
	PollInterval time.Duration
	// ValidateData verifies each measurement payload against the chip's
	// MISR data integrity register. Default is false.
	ValidateData bool
}

// DefaultOpts holds the default configuration options for the device. The
// compensation defaults match the chip's own power-on assumptions.
var DefaultOpts = Opts{
	Temperature:  physic.ZeroCelsius + 20*physic.Kelvin,
	Humidity:     50 * physic.PercentRH,
	ReadTimeout:  2 * time.Second,
	PollInterval: 20 * time.Millisecond,
}

// Dev represents an ENS160 device. A Dev owns the logical session state
// (cached mode, warm-up clock, last reading) but borrows the bus, which may
// be shared with other devices; serializing access across devices is the
// caller's responsibility.
type Dev struct {
	d        *i2c.Dev
	opts     Opts
	firmware string

	mu     sync.Mutex
	chHalt chan struct{}
	// now is replaceable for tests.
	now func() time.Time
	// mode is the last confirmed operating mode. Mutated only after the
	// device acknowledged a transition.
	mode OpMode
	// warmupStart is the time of the last transition into Standard mode.
	warmupStart time.Time
	// lastValidity is the validity flag observed with the last measurement.
	lastValidity Validity
	last         AirQuality
	// misr mirrors the chip's data integrity register.
	misr byte
}

// NewI2C returns an object that communicates over I²C to an ENS160 air
// quality sensor. Use DefaultAddress or AlternateAddress depending on the
// ADDR pin wiring. The Opts can be nil.
//
// The device is reset, identified and left in Idle mode; call SetMode with
// Standard (or just Sense) to start measuring.
func NewI2C(b i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOpts.PollInterval
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultOpts.Temperature
	}
	if opts.Humidity == 0 {
		opts.Humidity = DefaultOpts.Humidity
	}
	d := &Dev{d: &i2c.Dev{Bus: b, Addr: addr}, opts: *opts, now: time.Now, mode: DeepSleep}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) init() error {
	// Reset pulse. Registers are not guaranteed to be accessible until the
	// device is moved out of its previous mode, so go to Idle right after.
	if err := d.writeReg(regOpMode, byte(opModeReset)); err != nil {
		return fmt.Errorf("ens160: reset: %w", err)
	}
	time.Sleep(resetDelay)
	if err := d.setMode(Idle); err != nil {
		return err
	}

	var id [2]byte
	if err := d.readReg(regPartID, id[:]); err != nil {
		return fmt.Errorf("ens160: part id: %w", err)
	}
	if got := binary.LittleEndian.Uint16(id[:]); got != partID {
		return &IdentificationError{PartID: got}
	}

	fw, err := d.firmwareVersion()
	if err != nil {
		return err
	}
	d.firmware = fw

	// Interrupt pin parked until the caller configures it.
	if err := d.configureInterrupt(IntConfig{ActiveLow: true, OpenDrain: true, OnNewData: true}); err != nil {
		return err
	}

	if err := d.setAmbient(d.opts.Temperature, d.opts.Humidity); err != nil {
		return err
	}

	if d.opts.ValidateData {
		var m [1]byte
		if err := d.readReg(regDataMISR, m[:]); err != nil {
			return fmt.Errorf("ens160: misr seed: %w", err)
		}
		d.misr = m[0]
	}
	return nil
}

// firmwareVersion asks the device for its application version. Commands are
// answered through the general purpose read registers once NEWGPR flips on.
func (d *Dev) firmwareVersion() (string, error) {
	if err := d.writeReg(regCommand, cmdGetAppVer); err != nil {
		return "", fmt.Errorf("ens160: query firmware: %w", err)
	}
	deadline := time.Now().Add(gprTimeout)
	for {
		st, err := d.readStatus()
		if err != nil {
			return "", err
		}
		if st.NewGPR() {
			break
		}
		if time.Now().After(deadline) {
			return "", &ReadTimeoutError{}
		}
		time.Sleep(time.Millisecond)
	}
	// The answer occupies GPR_READ4..GPR_READ6.
	var buf [3]byte
	if err := d.readReg(regGPRRead+4, buf[:]); err != nil {
		return "", fmt.Errorf("ens160: read firmware: %w", err)
	}
	return fmt.Sprintf("%d.%d.%d", buf[0], buf[1], buf[2]), nil
}

// FirmwareVersion returns the chip application version read at
// initialization, formatted as "major.minor.release".
func (d *Dev) FirmwareVersion() string {
	return d.firmware
}

// SetMode moves the device to the requested operating mode. The write is
// confirmed by reading the mode register back, with a bounded number of
// attempts before giving up with a TransitionError.
//
// Entering Standard mode restarts the warm-up clock; leaving it discards
// any in-flight measurement state. The cached mode used by Poll is only
// updated after the device confirmed the transition.
func (d *Dev) SetMode(mode OpMode) error {
	switch mode {
	case DeepSleep, Idle, Standard:
	default:
		return fmt.Errorf("ens160: invalid operating mode %#02x", byte(mode))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setMode(mode)
}

func (d *Dev) setMode(mode OpMode) error {
	for attempt := 0; attempt < modeAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(modeSettle)
		}
		if err := d.writeReg(regOpMode, byte(mode)); err != nil {
			return fmt.Errorf("ens160: set mode: %w", err)
		}
		var buf [1]byte
		if err := d.readReg(regOpMode, buf[:]); err != nil {
			return fmt.Errorf("ens160: confirm mode: %w", err)
		}
		if OpMode(buf[0]) != mode {
			continue
		}
		if mode == Standard && d.mode != Standard {
			d.warmupStart = d.now()
		}
		if mode != Standard {
			// Warm-up restarts from zero on the next entry into Standard.
			d.warmupStart = time.Time{}
			d.lastValidity = ValidityNormal
		}
		d.mode = mode
		return nil
	}
	return &TransitionError{Target: mode}
}

// Mode returns the last confirmed operating mode. This is the driver's
// cache, not a fresh register read; it stays accurate as long as all mode
// changes go through SetMode.
func (d *Dev) Mode() OpMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Wake is shorthand for SetMode(Standard).
func (d *Dev) Wake() error {
	return d.SetMode(Standard)
}

// Poll checks the device for a fresh measurement exactly once. It returns
// (false, nil) when the device has not finished a new conversion yet; the
// caller owns the retry schedule, the driver imposes no sleep of its own.
// When new data is available, the decoded snapshot is stored in aq (which
// may be nil) and remembered for LastReading.
//
// Poll is only valid in Standard mode and fails with a WrongModeError,
// without touching the bus, otherwise.
//
// When the INTn pin is used as a data-ready signal, call Poll once per edge.
// The edge is purely a wake-up hint: the status check here remains
// authoritative, as the line may fire spuriously or coalesce events.
func (d *Dev) Poll(aq *AirQuality) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.poll(aq)
}

func (d *Dev) poll(aq *AirQuality) (bool, error) {
	if d.mode != Standard {
		return false, &WrongModeError{Mode: d.mode}
	}
	st, err := d.readStatus()
	if err != nil {
		return false, err
	}
	if st.Error() {
		return false, &DeviceFailureError{Status: st}
	}
	// The validity flag wins over NEWDAT: never hand out data the chip
	// itself disowns.
	if st.Validity() == ValidityInvalid {
		return false, &InvalidOutputError{}
	}
	if !st.NewData() {
		return false, nil
	}
	// One contiguous read covering DATA_AQI through DATA_ECO2, so that both
	// halves of each 16 bit value come from the same conversion cycle.
	var buf [5]byte
	if err := d.readReg(regDataAQI, buf[:]); err != nil {
		return false, fmt.Errorf("ens160: data: %w", err)
	}
	if d.opts.ValidateData {
		if err := d.checkMISR(buf[:]); err != nil {
			return false, err
		}
	}
	d.last = decodeAirQuality(buf[:], d.now())
	d.lastValidity = st.Validity()
	if aq != nil {
		*aq = d.last
	}
	return true, nil
}

// LastReading returns the most recent successfully decoded measurement. The
// zero value, recognizable by its zero Time, is returned before the first
// successful Poll.
func (d *Dev) LastReading() AirQuality {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Accuracy reports how much current readings should be trusted. Within
// three minutes of entering Standard mode the device is WarmingUp. A
// factory fresh sensor reports an initial start-up phase through its
// validity flag for about an hour; that maps to Uncertain, as does not
// being in Standard mode at all.
func (d *Dev) Accuracy() Level {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastValidity == ValidityInitialStartup {
		return Uncertain
	}
	if d.mode != Standard || d.warmupStart.IsZero() {
		return Uncertain
	}
	if d.now().Sub(d.warmupStart) < warmUpPeriod {
		return WarmingUp
	}
	return Nominal
}

// ReadStatus returns a fresh snapshot of the DEVICE_STATUS register.
func (d *Dev) ReadStatus() (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readStatus()
}

// SetAmbient feeds the chip the ambient temperature and relative humidity
// it compensates its measurements with. Pair the ENS160 with a co-located
// temperature/humidity sensor and refresh these values for best accuracy.
func (d *Dev) SetAmbient(t physic.Temperature, rh physic.RelativeHumidity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setAmbient(t, rh)
}

func (d *Dev) setAmbient(t physic.Temperature, rh physic.RelativeHumidity) error {
	// TEMP_IN wants Kelvin scaled by 64, RH_IN percent scaled by 512.
	tCount := (int64(t)*64 + int64(physic.Kelvin)/2) / int64(physic.Kelvin)
	rhCount := (int64(rh)*512 + int64(physic.PercentRH)/2) / int64(physic.PercentRH)
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(tCount))
	if err := d.writeReg(regTempIn, buf[:]...); err != nil {
		return fmt.Errorf("ens160: temp in: %w", err)
	}
	binary.LittleEndian.PutUint16(buf[:], uint16(rhCount))
	if err := d.writeReg(regRHIn, buf[:]...); err != nil {
		return fmt.Errorf("ens160: rh in: %w", err)
	}
	return nil
}

// Compensation reads back the temperature and relative humidity values the
// chip is currently compensating with.
func (d *Dev) Compensation() (physic.Temperature, physic.RelativeHumidity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// DATA_T and DATA_RH are adjacent; one read covers both.
	var buf [4]byte
	if err := d.readReg(regDataT, buf[:]); err != nil {
		return 0, 0, fmt.Errorf("ens160: data t/rh: %w", err)
	}
	t := physic.Temperature(binary.LittleEndian.Uint16(buf[0:2])) * physic.Kelvin / 64
	rh := physic.RelativeHumidity(int64(binary.LittleEndian.Uint16(buf[2:4])) * int64(physic.PercentRH) / 512)
	return t, rh, nil
}

// IntConfig describes the behaviour of the INTn pin of the chip. The driver
// only programs the chip side; routing the pin to a host GPIO and waiting
// for edges is up to the caller.
type IntConfig struct {
	// Enable drives the pin at all.
	Enable bool
	// ActiveLow asserts the pin low instead of high.
	ActiveLow bool
	// OpenDrain configures the pin as open drain instead of push-pull.
	OpenDrain bool
	// OnNewData asserts the pin when a measurement is ready.
	OnNewData bool
	// OnNewGPR asserts the pin when the general purpose read registers
	// update.
	OnNewGPR bool
}

// CONFIG register bits.
const (
	cfgIntEn  byte = 1 << 0
	cfgIntDat byte = 1 << 1
	cfgIntGPR byte = 1 << 3
	cfgIntCfg byte = 1 << 5 // open drain
	cfgIntPol byte = 1 << 6 // active low
)

// ConfigureInterrupt programs the INTn pin of the device. NewI2C leaves the
// pin disabled but pre-configured as active low, open drain, asserting on
// new measurement data.
func (d *Dev) ConfigureInterrupt(cfg IntConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configureInterrupt(cfg)
}

func (d *Dev) configureInterrupt(cfg IntConfig) error {
	var reg byte
	if cfg.Enable {
		reg |= cfgIntEn
	}
	if cfg.ActiveLow {
		reg |= cfgIntPol
	}
	if cfg.OpenDrain {
		reg |= cfgIntCfg
	}
	if cfg.OnNewData {
		reg |= cfgIntDat
	}
	if cfg.OnNewGPR {
		reg |= cfgIntGPR
	}
	if err := d.writeReg(regConfig, reg); err != nil {
		return fmt.Errorf("ens160: config: %w", err)
	}
	return nil
}

// Sense performs a blocking read: it moves the device to Standard mode if
// needed and polls until the chip flags a fresh measurement. The device
// completes one conversion per second in Standard mode, so expect to wait
// up to that long. A configured ReadTimeout bounds the wait.
func (d *Dev) Sense(aq *AirQuality) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode != Standard {
		if err := d.setMode(Standard); err != nil {
			return err
		}
	}
	var deadline time.Time
	if d.opts.ReadTimeout > 0 {
		deadline = time.Now().Add(d.opts.ReadTimeout)
	}
	for {
		ok, err := d.poll(aq)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return &ReadTimeoutError{}
		}
		time.Sleep(d.opts.PollInterval)
	}
}

// SenseContinuous polls the device on the given interval and delivers fresh
// measurements on the returned channel. Only measurements the chip flags as
// new are delivered, so intervals shorter than the one second conversion
// rate do not produce duplicates. To terminate, call Halt().
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan AirQuality, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.chHalt != nil {
		return nil, errors.New("ens160: SenseContinuous() running already")
	}
	if d.mode != Standard {
		if err := d.setMode(Standard); err != nil {
			return nil, err
		}
	}
	d.chHalt = make(chan struct{})
	channel := make(chan AirQuality, 16)
	go func(halt <-chan struct{}) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(channel)
		for {
			select {
			case <-halt:
				return
			case <-ticker.C:
				// do the reading and write to the channel.
				var aq AirQuality
				if ok, err := d.Poll(&aq); err == nil && ok && len(channel) < cap(channel) {
					channel <- aq
				}
			}
		}
	}(d.chHalt)
	return channel, nil
}

// Precision returns the sensor's resolution, or minimum value between steps
// the device can make. Every channel moves in steps of one count: one index
// position, 1 ppb, 1 ppm.
func (d *Dev) Precision(aq *AirQuality) {
	aq.AQI = 1
	aq.TVOC = 1
	aq.ECO2 = 1
	aq.Time = time.Time{}
}

// Halt stops a SenseContinuous operation if one is in progress and puts the
// device into deep sleep. Wake it again with SetMode. Implements
// conn.Resource.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.chHalt != nil {
		close(d.chHalt)
		d.chHalt = nil
	}
	return d.setMode(DeepSleep)
}

func (d *Dev) String() string {
	return fmt.Sprintf("ens160: %s", d.d.String())
}

func (d *Dev) readStatus() (Status, error) {
	var buf [1]byte
	if err := d.readReg(regDeviceStatus, buf[:]); err != nil {
		return 0, fmt.Errorf("ens160: status: %w", err)
	}
	return Status(buf[0]), nil
}

// checkMISR advances the local mirror of the chip's data integrity register
// over the payload just read and compares it with the device's value. On a
// mismatch the mirror resynchronizes to the device so a single corrupt
// transfer does not poison every later poll.
func (d *Dev) checkMISR(payload []byte) error {
	want := d.misr
	for _, b := range payload {
		want = misrUpdate(want, b)
	}
	var got [1]byte
	if err := d.readReg(regDataMISR, got[:]); err != nil {
		return fmt.Errorf("ens160: misr: %w", err)
	}
	d.misr = got[0]
	if got[0] != want {
		return &DataCorruptionError{}
	}
	return nil
}

func misrUpdate(misr, b byte) byte {
	next := (misr << 1) ^ b
	if misr&0x80 != 0 {
		next ^= misrPoly
	}
	return next
}

func (d *Dev) writeReg(reg byte, data ...byte) error {
	return d.d.Tx(append([]byte{reg}, data...), nil)
}

func (d *Dev) readReg(reg byte, into []byte) error {
	return d.d.Tx([]byte{reg}, into)
}

// decodeAirQuality parses the DATA_AQI..DATA_ECO2 block. The index sits in
// the low three bits of the first byte; TVOC and eCO2 are little endian and
// already in ppb/ppm, the chip does its own fusion math. Pure: validity is
// established by the poller before any payload reaches this point.
func decodeAirQuality(buf []byte, t time.Time) AirQuality {
	return AirQuality{
		AQI:  AQI(buf[0] & 0x07),
		TVOC: TVOC(binary.LittleEndian.Uint16(buf[1:3])),
		ECO2: ECO2(binary.LittleEndian.Uint16(buf[3:5])),
		Time: t,
	}
}

var _ conn.Resource = &Dev{}
