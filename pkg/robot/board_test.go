package robot

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gwillem/mazebot/pkg/nav"
)

// fakePort is an in-memory serial port. Reads drain queued replies and
// return (0, nil) when empty, like a serial port whose read timed out.
type fakePort struct {
	replies  bytes.Buffer
	written  bytes.Buffer
	writeErr error
	closed   bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.replies.Len() == 0 {
		return 0, nil
	}
	return p.replies.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func (p *fakePort) queueReading(r nav.Reading) {
	for _, v := range r {
		binary.Write(&p.replies, binary.LittleEndian, uint16(v))
	}
}

type recordingClock struct {
	sleeps []time.Duration
}

func (c *recordingClock) Now() time.Time        { return time.Time{} }
func (c *recordingClock) Sleep(d time.Duration) { c.sleeps = append(c.sleeps, d) }

func identityCalibration() Calibration {
	var cal Calibration
	for i := range cal {
		cal[i] = SensorCalibration{Min: 0, Max: 1000}
	}
	return cal
}

func TestBoard_SetMotors(t *testing.T) {
	tests := []struct {
		left, right int
		want        []byte
	}{
		{0, 0, []byte{0xC1, 0, 0xC5, 0}},
		{60, 60, []byte{0xC1, 30, 0xC5, 30}},
		{-80, 80, []byte{0xC2, 40, 0xC5, 40}},
		{80, -80, []byte{0xC1, 40, 0xC6, 40}},
		{255, -255, []byte{0xC1, 127, 0xC6, 127}},
		{400, -400, []byte{0xC1, 127, 0xC6, 127}}, // clamped
	}

	for _, tt := range tests {
		port := &fakePort{}
		b := NewBoard(port, Calibration{})
		if err := b.SetMotors(context.Background(), tt.left, tt.right); err != nil {
			t.Fatalf("SetMotors(%d, %d): %v", tt.left, tt.right, err)
		}
		if diff := cmp.Diff(tt.want, port.written.Bytes()); diff != "" {
			t.Errorf("SetMotors(%d, %d) bytes mismatch (-want +got):\n%s", tt.left, tt.right, diff)
		}
	}
}

func TestBoard_ReadRaw(t *testing.T) {
	port := &fakePort{}
	port.queueReading(nav.Reading{2000, 1500, 300, 0, 65})
	b := NewBoard(port, Calibration{})

	got, err := b.ReadRaw(context.Background())
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if want := (nav.Reading{2000, 1500, 300, 0, 65}); got != want {
		t.Errorf("ReadRaw() = %v, want %v", got, want)
	}
	if !bytes.Equal(port.written.Bytes(), []byte{0x86}) {
		t.Errorf("ReadRaw wrote %X, want 86", port.written.Bytes())
	}
}

func TestBoard_ReadLine(t *testing.T) {
	port := &fakePort{}
	port.queueReading(nav.Reading{0, 0, 500, 500, 0})
	b := NewBoard(port, identityCalibration())

	r, pos, err := b.ReadLine(context.Background())
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if r != (nav.Reading{0, 0, 500, 500, 0}) {
		t.Errorf("reading = %v", r)
	}
	if pos != 2500 {
		t.Errorf("position = %d, want 2500", pos)
	}
}

func TestBoard_ShortReadTimesOut(t *testing.T) {
	port := &fakePort{}
	port.replies.Write([]byte{1, 2, 3})
	b := NewBoard(port, Calibration{})

	_, _, err := b.ReadLine(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("ReadLine error = %v, want ErrTimeout", err)
	}
}

func TestBoard_BatteryMillivolts(t *testing.T) {
	port := &fakePort{}
	binary.Write(&port.replies, binary.LittleEndian, uint16(4870))
	b := NewBoard(port, Calibration{})

	mv, err := b.BatteryMillivolts(context.Background())
	if err != nil {
		t.Fatalf("BatteryMillivolts: %v", err)
	}
	if mv != 4870 {
		t.Errorf("BatteryMillivolts() = %d, want 4870", mv)
	}
}

func TestBoard_Ping(t *testing.T) {
	port := &fakePort{}
	port.replies.WriteString("3pi1.1")
	b := NewBoard(port, Calibration{})

	sig, err := b.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if sig != "3pi1.1" {
		t.Errorf("signature = %q", sig)
	}

	port.replies.WriteString("ABCDEF")
	if _, err := b.Ping(context.Background()); !errors.Is(err, ErrBadSignature) {
		t.Errorf("Ping error = %v, want ErrBadSignature", err)
	}
}

func TestBoard_WriteError(t *testing.T) {
	port := &fakePort{writeErr: errors.New("device gone")}
	b := NewBoard(port, Calibration{})

	if err := b.SetMotors(context.Background(), 10, 10); !errors.Is(err, port.writeErr) {
		t.Errorf("SetMotors error = %v", err)
	}
	if _, err := b.ReadRaw(context.Background()); !errors.Is(err, port.writeErr) {
		t.Errorf("ReadRaw error = %v", err)
	}
}

func TestBoard_CancelledContext(t *testing.T) {
	port := &fakePort{}
	b := NewBoard(port, Calibration{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.SetMotors(ctx, 10, 10); !errors.Is(err, context.Canceled) {
		t.Errorf("SetMotors error = %v", err)
	}
	if port.written.Len() != 0 {
		t.Errorf("wrote %d bytes with a cancelled context", port.written.Len())
	}
}

func TestBoard_Calibrate(t *testing.T) {
	port := &fakePort{}
	for i := 0; i < CalibrationSteps; i++ {
		v := 100 + i*20 // 100..1680
		port.queueReading(nav.Reading{v, v, v, v, v})
	}
	clock := &recordingClock{}
	b := NewBoard(port, Calibration{})

	var steps int
	cal, err := b.Calibrate(context.Background(), clock, func(int, nav.Reading) { steps++ })
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if steps != CalibrationSteps {
		t.Errorf("onStep called %d times, want %d", steps, CalibrationSteps)
	}
	if len(clock.sleeps) != CalibrationSteps || clock.sleeps[0] != 20*time.Millisecond {
		t.Errorf("sleeps = %d x %v", len(clock.sleeps), clock.sleeps[0])
	}
	for i, sc := range cal {
		if sc != (SensorCalibration{Min: 100, Max: 1680}) {
			t.Errorf("cal[%d] = %+v", i, sc)
		}
	}
	if b.Calibration() != cal {
		t.Error("Calibrate did not apply the new calibration")
	}

	// Each step writes 4 motor bytes and one sensor command; then a stop.
	out := port.written.Bytes()
	if len(out) != CalibrationSteps*5+4 {
		t.Fatalf("wrote %d bytes", len(out))
	}
	spin := func(step int) []byte { return out[step*5 : step*5+4] }
	if diff := cmp.Diff([]byte{0xC1, 20, 0xC6, 20}, spin(0)); diff != "" {
		t.Errorf("step 0 spin (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{0xC2, 20, 0xC5, 20}, spin(20)); diff != "" {
		t.Errorf("step 20 spin (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{0xC1, 20, 0xC6, 20}, spin(60)); diff != "" {
		t.Errorf("step 60 spin (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{0xC1, 0, 0xC5, 0}, out[len(out)-4:]); diff != "" {
		t.Errorf("final stop (-want +got):\n%s", diff)
	}
}

func TestBoard_ImplementsHardware(t *testing.T) {
	var _ nav.Hardware = NewBoard(&fakePort{}, Calibration{})
}

func TestBoard_Close(t *testing.T) {
	port := &fakePort{}
	b := NewBoard(port, Calibration{})
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !port.closed {
		t.Error("port not closed")
	}
	if !bytes.Equal(port.written.Bytes(), []byte{0xC1, 0, 0xC5, 0}) {
		t.Errorf("Close did not stop motors: %X", port.written.Bytes())
	}
}
