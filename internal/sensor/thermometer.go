package sensor

import (
	"fmt"
	"log/slog"

	"github.com/fieldcap/fieldcap/internal/errors"
	"github.com/fieldcap/fieldcap/internal/logging"
)

// MCP9808-family register map.
const (
	tempRegAmbient = 0x05 // 13-bit signed, sixteenths of a degree
	tempRegManufID = 0x06 // reads 0x0054 on genuine parts
	tempRegDevID   = 0x07 // reads 0x0400

	tempManufID = 0x0054
	tempDevID   = 0x0400
)

// Thermometer is the board temperature family adapter. The device converts
// continuously at a fixed rate, so Ready doubles as a liveness check on the
// identity registers. Readings are the raw 13-bit signed ambient value in
// sixteenths of a degree, kept as an integer so files round-trip exactly.
type Thermometer struct {
	bus  Bus
	addr uint8
	id   string
	freq float64
	log  *slog.Logger
}

// LaunchThermometer probes one temperature sensor by its identity
// registers. frequency is the effective conversion rate used for rate
// estimation; the device has no rate register to read back.
func LaunchThermometer(bus Bus, addr uint8, frequency float64) (*Thermometer, error) {
	t := &Thermometer{
		bus:  bus,
		addr: addr,
		id:   fmt.Sprintf("temp_0x%02x", addr),
		freq: frequency,
	}
	t.log = logging.Component("sensor").With("sensor", t.id)

	manuf, err := bus.ReadReg16(addr, tempRegManufID)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrAdapterInit, "%s: identity probe: %v", t.id, err)
	}
	dev, err := bus.ReadReg16(addr, tempRegDevID)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrAdapterInit, "%s: identity probe: %v", t.id, err)
	}
	if manuf != tempManufID || dev != tempDevID {
		return nil, errors.Wrapf(errors.ErrAdapterInit,
			"%s: unexpected identity 0x%04x/0x%04x", t.id, manuf, dev)
	}

	t.log.Info("thermometer configured", "frequency", frequency)
	return t, nil
}

// Identifier returns the sensor ID.
func (t *Thermometer) Identifier() string { return t.id }

// Fields returns the single scalar column name.
func (t *Thermometer) Fields() []string { return []string{"Temp"} }

// ReportedFrequency returns the configured conversion rate.
func (t *Thermometer) ReportedFrequency() float64 { return t.freq }

// Ready re-checks the identity registers. The part has no data-ready flag;
// a readable identity means the next conversion is available.
func (t *Thermometer) Ready() (bool, error) {
	manuf, err := t.bus.ReadReg16(t.addr, tempRegManufID)
	if err != nil {
		return false, unreachable(err)
	}
	return manuf == tempManufID, nil
}

// Read fetches the ambient register and sign-extends the 13-bit value.
func (t *Thermometer) Read() ([]int64, error) {
	raw, err := t.bus.ReadReg16(t.addr, tempRegAmbient)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrReadFailed, "%s: %v", t.id, err)
	}
	v := int64(raw & 0x1FFF)
	if v&0x1000 != 0 {
		v -= 1 << 13
	}
	return []int64{v}, nil
}

// Close is a no-op; the shared bus is closed by its owner.
func (t *Thermometer) Close() error { return nil }
