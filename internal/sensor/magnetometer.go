package sensor

import (
	"fmt"
	"log/slog"

	"github.com/fieldcap/fieldcap/internal/errors"
	"github.com/fieldcap/fieldcap/internal/logging"
)

// RM3100-family register map. These addresses are the only place in the
// codebase that knows the device layout.
const (
	magRegCMM  = 0x01 // continuous measurement mode
	magRegCCX  = 0x04 // cycle count X (16-bit)
	magRegCCY  = 0x06 // cycle count Y
	magRegCCZ  = 0x08 // cycle count Z
	magRegTMRC = 0x0B // update rate

	magRegReadCCX  = 0x84 // readback of cycle count X
	magRegReadCCY  = 0x86
	magRegReadCCZ  = 0x88
	magRegReadTMRC = 0x8B

	magRegMeasurements = 0x24 // 9 bytes: X, Y, Z as 24-bit signed
	magRegStatus       = 0xB4 // DRDY in bit 7
	magRegTest         = 0xB6 // readable iff the device is present

	magStatusDRDY = 0x80
	magCMMStart   = 0x79
)

// Magnetometer is the three-axis magnetometer family adapter. Readings are
// raw 24-bit signed counts per axis; conversion to physical units is out of
// scope for acquisition.
type Magnetometer struct {
	bus  Bus
	addr uint8
	id   string
	freq float64
	log  *slog.Logger
}

// MagnetometerConfig holds the launch-time device configuration.
type MagnetometerConfig struct {
	Address       uint8
	FrequencyCode uint8 // TMRC value selecting the update band
	CycleCount    uint16
}

// LaunchMagnetometer probes, configures, and starts continuous measurement
// on one magnetometer. A device that cannot be probed returns an error
// wrapping errors.ErrAdapterInit; the caller excludes it from the run.
func LaunchMagnetometer(bus Bus, cfg MagnetometerConfig) (*Magnetometer, error) {
	m := &Magnetometer{
		bus:  bus,
		addr: cfg.Address,
		id:   fmt.Sprintf("mag_0x%02x", cfg.Address),
	}
	m.log = logging.Component("sensor").With("sensor", m.id)

	// Probe: the test register is readable only when the device answers.
	if _, err := bus.ReadReg(cfg.Address, magRegTest); err != nil {
		return nil, errors.Wrapf(errors.ErrAdapterInit, "%s: status probe: %v", m.id, err)
	}

	if err := bus.WriteReg(cfg.Address, magRegTMRC, cfg.FrequencyCode); err != nil {
		return nil, errors.Wrapf(errors.ErrAdapterInit, "%s: set frequency: %v", m.id, err)
	}
	for _, reg := range []uint8{magRegCCX, magRegCCY, magRegCCZ} {
		if err := bus.WriteReg16(cfg.Address, reg, cfg.CycleCount); err != nil {
			return nil, errors.Wrapf(errors.ErrAdapterInit, "%s: set cycle count: %v", m.id, err)
		}
	}

	// Read the configuration back so the run log records what the device
	// actually accepted, not what we asked for.
	ccx, _ := bus.ReadReg16(cfg.Address, magRegReadCCX)
	ccy, _ := bus.ReadReg16(cfg.Address, magRegReadCCY)
	ccz, _ := bus.ReadReg16(cfg.Address, magRegReadCCZ)
	tmrc, err := bus.ReadReg(cfg.Address, magRegReadTMRC)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrAdapterInit, "%s: frequency readback: %v", m.id, err)
	}
	// The TMRC code is numerically the nominal update rate in Hz
	// (0x96 = 150 Hz band).
	m.freq = float64(tmrc)

	m.log.Info("magnetometer configured",
		"frequency", tmrc, "cc_x", ccx, "cc_y", ccy, "cc_z", ccz)

	if err := bus.WriteReg(cfg.Address, magRegCMM, magCMMStart); err != nil {
		return nil, errors.Wrapf(errors.ErrAdapterInit, "%s: start continuous mode: %v", m.id, err)
	}

	return m, nil
}

// Identifier returns the sensor ID.
func (m *Magnetometer) Identifier() string { return m.id }

// Fields returns the axis column names.
func (m *Magnetometer) Fields() []string { return []string{"X", "Y", "Z"} }

// ReportedFrequency returns the TMRC readback taken at launch.
func (m *Magnetometer) ReportedFrequency() float64 { return m.freq }

// Ready checks the DRDY bit without consuming the measurement.
func (m *Magnetometer) Ready() (bool, error) {
	status, err := m.bus.ReadReg(m.addr, magRegStatus)
	if err != nil {
		return false, unreachable(err)
	}
	return status&magStatusDRDY != 0, nil
}

// Read fetches all three axes in a single 9-byte block transaction.
func (m *Magnetometer) Read() ([]int64, error) {
	raw, err := m.bus.ReadBlock(m.addr, magRegMeasurements, 9)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrReadFailed, "%s: %v", m.id, err)
	}
	return []int64{
		signExtend24(raw[0:3]),
		signExtend24(raw[3:6]),
		signExtend24(raw[6:9]),
	}, nil
}

// Close is a no-op; the shared bus is closed by its owner.
func (m *Magnetometer) Close() error { return nil }

// signExtend24 converts a big-endian 24-bit two's-complement value to int64.
func signExtend24(b []byte) int64 {
	v := int64(b[0])<<16 | int64(b[1])<<8 | int64(b[2])
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v
}
