package sensor

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/fieldcap/fieldcap/internal/errors"
)

// Bus is the register-level transport the device families sit on. All
// transactions are short and synchronous; there are no retries at this
// layer.
type Bus interface {
	// ReadReg reads one byte from reg of the device at addr.
	ReadReg(addr, reg uint8) (uint8, error)

	// ReadReg16 reads a big-endian 16-bit word starting at reg.
	ReadReg16(addr, reg uint8) (uint16, error)

	// ReadBlock reads n consecutive bytes starting at reg.
	ReadBlock(addr, reg uint8, n int) ([]byte, error)

	// WriteReg writes one byte to reg.
	WriteReg(addr, reg, value uint8) error

	// WriteReg16 writes a big-endian 16-bit word starting at reg.
	WriteReg16(addr, reg uint8, value uint16) error

	// Close releases the bus.
	Close() error
}

// i2cSlave is the i2c-dev ioctl selecting the target device address.
const i2cSlave = 0x0703

// I2CBus talks to /dev/i2c-N through the Linux i2c-dev interface.
// Safe for sequential use from one goroutine per transaction; the mutex
// only guards the select-address/transfer pair.
type I2CBus struct {
	mu   sync.Mutex
	file *os.File
	num  int
	addr int // currently selected slave address, -1 if none
}

// OpenI2C opens the i2c-dev character device for bus number num.
func OpenI2C(num int) (*I2CBus, error) {
	path := fmt.Sprintf("/dev/i2c-%d", num)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrBusUnavailable, "open %s: %v", path, err)
	}
	return &I2CBus{file: f, num: num, addr: -1}, nil
}

// Number returns the bus number.
func (b *I2CBus) Number() int {
	return b.num
}

func (b *I2CBus) selectAddr(addr uint8) error {
	if b.addr == int(addr) {
		return nil
	}
	if err := unix.IoctlSetInt(int(b.file.Fd()), i2cSlave, int(addr)); err != nil {
		return fmt.Errorf("select 0x%02x on i2c-%d: %w", addr, b.num, err)
	}
	b.addr = int(addr)
	return nil
}

// ReadReg reads one byte from reg of the device at addr.
func (b *I2CBus) ReadReg(addr, reg uint8) (uint8, error) {
	buf, err := b.ReadBlock(addr, reg, 1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadReg16 reads a big-endian 16-bit word starting at reg.
func (b *I2CBus) ReadReg16(addr, reg uint8) (uint16, error) {
	buf, err := b.ReadBlock(addr, reg, 2)
	if err != nil {
		return 0, err
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// ReadBlock reads n consecutive bytes starting at reg in one
// write-register/read-data transaction.
func (b *I2CBus) ReadBlock(addr, reg uint8, n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.selectAddr(addr); err != nil {
		return nil, err
	}
	if _, err := b.file.Write([]byte{reg}); err != nil {
		return nil, fmt.Errorf("write reg 0x%02x to 0x%02x: %w", reg, addr, err)
	}
	buf := make([]byte, n)
	if _, err := b.file.Read(buf); err != nil {
		return nil, fmt.Errorf("read %d bytes at 0x%02x from 0x%02x: %w", n, reg, addr, err)
	}
	return buf, nil
}

// WriteReg writes one byte to reg.
func (b *I2CBus) WriteReg(addr, reg, value uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.selectAddr(addr); err != nil {
		return err
	}
	if _, err := b.file.Write([]byte{reg, value}); err != nil {
		return fmt.Errorf("write 0x%02x=0x%02x to 0x%02x: %w", reg, value, addr, err)
	}
	return nil
}

// WriteReg16 writes a big-endian 16-bit word starting at reg.
func (b *I2CBus) WriteReg16(addr, reg uint8, value uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.selectAddr(addr); err != nil {
		return err
	}
	if _, err := b.file.Write([]byte{reg, uint8(value >> 8), uint8(value)}); err != nil {
		return fmt.Errorf("write16 0x%02x=0x%04x to 0x%02x: %w", reg, value, addr, err)
	}
	return nil
}

// Close releases the bus device.
func (b *I2CBus) Close() error {
	return b.file.Close()
}
