package robot

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/gwillem/mazebot/pkg/nav"
)

const (
	// DefaultBaudRate is the serial slave firmware's default speed.
	DefaultBaudRate = 115200

	readTimeout = 100 * time.Millisecond
)

var (
	// ErrTimeout is returned when the board does not answer in time.
	ErrTimeout = errors.New("board read timeout")

	// ErrBadSignature is returned when the device is not a 3pi.
	ErrBadSignature = errors.New("unexpected board signature")
)

// Board is a 3pi robot attached over a serial port. It implements
// nav.Hardware: raw readings are calibrated and turned into a line
// position on the host.
type Board struct {
	port io.ReadWriteCloser
	cal  Calibration
	line LineEstimator
	buf  [2 * nav.NumSensors]byte
}

// Open opens the serial port and returns a board using cal.
func Open(port string, baudRate int, cal Calibration) (*Board, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open port: %w", err)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return NewBoard(p, cal), nil
}

// NewBoard wraps an already open port.
func NewBoard(port io.ReadWriteCloser, cal Calibration) *Board {
	return &Board{port: port, cal: cal}
}

// Close stops the motors and closes the port.
func (b *Board) Close() error {
	stopErr := b.Stop(context.Background())
	if err := b.port.Close(); err != nil {
		return err
	}
	return stopErr
}

// Calibration returns the calibration in use.
func (b *Board) Calibration() Calibration {
	return b.cal
}

// Signature returns the firmware signature, e.g. "3pi1.1".
func (b *Board) Signature(ctx context.Context) (string, error) {
	var sig [6]byte
	if err := b.query(ctx, cmdSignature, sig[:]); err != nil {
		return "", fmt.Errorf("read signature: %w", err)
	}
	return string(sig[:]), nil
}

// Ping checks that the device answers with a 3pi signature.
func (b *Board) Ping(ctx context.Context) (string, error) {
	sig, err := b.Signature(ctx)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(sig, "3pi") {
		return sig, fmt.Errorf("%w: %q", ErrBadSignature, sig)
	}
	return sig, nil
}

// ReadRaw reads uncalibrated sensor values (0-2000 on the 3pi).
func (b *Board) ReadRaw(ctx context.Context) (nav.Reading, error) {
	var r nav.Reading
	if err := b.query(ctx, cmdRawSensors, b.buf[:]); err != nil {
		return r, fmt.Errorf("read sensors: %w", err)
	}
	for i := range r {
		r[i] = int(binary.LittleEndian.Uint16(b.buf[2*i:]))
	}
	return r, nil
}

// ReadLine reads calibrated values and the line position.
func (b *Board) ReadLine(ctx context.Context) (nav.Reading, int, error) {
	raw, err := b.ReadRaw(ctx)
	if err != nil {
		return nav.Reading{}, 0, err
	}
	r := b.cal.Apply(raw)
	return r, b.line.Position(r), nil
}

// SetMotors sets both wheel powers in [-MaxPower, MaxPower].
func (b *Board) SetMotors(ctx context.Context, left, right int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := encodeMotor(MotorLeft, left)
	r := encodeMotor(MotorRight, right)
	if _, err := b.port.Write([]byte{l[0], l[1], r[0], r[1]}); err != nil {
		return fmt.Errorf("write motors: %w", err)
	}
	return nil
}

// Stop stops both wheels.
func (b *Board) Stop(ctx context.Context) error {
	return b.SetMotors(ctx, 0, 0)
}

// BatteryMillivolts reads the battery voltage.
func (b *Board) BatteryMillivolts(ctx context.Context) (int, error) {
	var mv [2]byte
	if err := b.query(ctx, cmdBattery, mv[:]); err != nil {
		return 0, fmt.Errorf("read battery: %w", err)
	}
	return int(binary.LittleEndian.Uint16(mv[:])), nil
}

// Calibration sweep timing.
const (
	CalibrationSteps = 80
	calibrationSpeed = 40
	calibrationDelay = 20 * time.Millisecond
)

// Calibrate spins right, left, then right again over the line while
// recording the raw range of every sensor. onStep, if set, is called after
// each step. The new calibration is applied to the board on success.
func (b *Board) Calibrate(ctx context.Context, clock nav.Clock, onStep func(step int, raw nav.Reading)) (Calibration, error) {
	var c Calibrator

	for step := 0; step < CalibrationSteps; step++ {
		left, right := calibrationSpeed, -calibrationSpeed
		if step >= 20 && step < 60 {
			left, right = -calibrationSpeed, calibrationSpeed
		}
		if err := b.SetMotors(ctx, left, right); err != nil {
			b.Stop(context.Background())
			return c.Calibration(), err
		}

		raw, err := b.ReadRaw(ctx)
		if err != nil {
			b.Stop(context.Background())
			return c.Calibration(), err
		}
		c.Observe(raw)
		if onStep != nil {
			onStep(step, raw)
		}
		clock.Sleep(calibrationDelay)
	}

	if err := b.Stop(ctx); err != nil {
		return c.Calibration(), err
	}
	b.cal = c.Calibration()
	return b.cal, nil
}

// query sends a single command byte and reads the fixed-size reply.
func (b *Board) query(ctx context.Context, cmd byte, reply []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.port.Write([]byte{cmd}); err != nil {
		return fmt.Errorf("write command 0x%02X: %w", cmd, err)
	}
	return b.readFull(reply)
}

// readFull fills buf. A read that returns no data means the port's read
// timeout expired.
func (b *Board) readFull(buf []byte) error {
	for n := 0; n < len(buf); {
		m, err := b.port.Read(buf[n:])
		n += m
		if n == len(buf) {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrTimeout
			}
			return err
		}
		if m == 0 {
			return ErrTimeout
		}
	}
	return nil
}
