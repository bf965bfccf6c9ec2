// Package sensor defines the capability interface the acquisition loop is
// written against, plus the concrete device families that implement it.
//
// The scheduler never sees registers or bus addresses: it talks to an
// Adapter, which exposes exactly the operations acquisition needs: a
// ready-check, a sample read, an identifier, and the device's reported
// operating frequency. One adapter implementation exists per physical
// sensor family; the register maps live only inside the family files.
package sensor

import (
	"github.com/fieldcap/fieldcap/internal/errors"
)

// Adapter is the per-device capability used by the acquisition loop.
//
// The adapter contract bounds read latency: Ready and Read are short bus
// transactions, never open-ended waits. A blocking adapter stalls the whole
// cooperative loop, so implementations must fail fast instead of retrying
// internally.
type Adapter interface {
	// Identifier returns a stable, filesystem-safe sensor ID used in
	// segment file names (e.g. "mag_0x20").
	Identifier() string

	// Fields names the value columns a Read produces, in order.
	Fields() []string

	// ReportedFrequency returns the device's self-reported operating
	// frequency in device units, read back from the device at launch.
	ReportedFrequency() float64

	// Ready reports whether a new sample is available without consuming
	// the bandwidth of fetching it. (false, nil) means nothing ready yet;
	// a non-nil error means the device could not be reached. Callers can
	// tell the two apart.
	Ready() (bool, error)

	// Read fetches the current sample as raw signed device values, one
	// per field. A failed read returns an error wrapping
	// errors.ErrReadFailed; the sample is not retried.
	Read() ([]int64, error)

	// Close releases device resources.
	Close() error
}

// unreachable wraps a bus-level failure as a device-unreachable error so
// the scheduler can distinguish it from "no data yet".
func unreachable(err error) error {
	return errors.Wrap(errors.ErrDeviceUnreachable, err.Error())
}
