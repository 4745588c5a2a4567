// Package robot provides a serial driver for a 3pi line-following robot
// running the serial slave firmware.
package robot

// Motor identifies a drive wheel.
type Motor int

// Wheels of the 3pi. M1 is the left wheel, M2 the right.
const (
	MotorLeft Motor = iota + 1
	MotorRight
)

func (m Motor) String() string {
	switch m {
	case MotorLeft:
		return "left"
	case MotorRight:
		return "right"
	default:
		return "unknown"
	}
}

// MaxPower is the drive range accepted by SetMotors.
const MaxPower = 255

// Serial slave command bytes.
const (
	cmdSignature  byte = 0x81
	cmdRawSensors byte = 0x86
	cmdBattery    byte = 0xB1
	cmdM1Forward  byte = 0xC1
	cmdM1Backward byte = 0xC2
	cmdM2Forward  byte = 0xC5
	cmdM2Backward byte = 0xC6
)

// encodeMotor returns the command and speed byte for one wheel.
// The firmware takes a 7-bit speed and doubles it, so power is halved.
func encodeMotor(m Motor, power int) [2]byte {
	if power > MaxPower {
		power = MaxPower
	}
	if power < -MaxPower {
		power = -MaxPower
	}

	forward, backward := cmdM1Forward, cmdM1Backward
	if m == MotorRight {
		forward, backward = cmdM2Forward, cmdM2Backward
	}

	if power < 0 {
		return [2]byte{backward, byte(-power / 2)}
	}
	return [2]byte{forward, byte(power / 2)}
}
