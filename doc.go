// Package mazebot explores line mazes with a Pololu 3pi robot.
//
// The robot follows the line with a PID controller, probes every
// intersection, picks a turn by the left-hand rule and records the turns
// until it finds the goal marker. The host drives the robot over a serial
// link to the 3pi serial slave program.
//
// # Installation
//
//	go install github.com/gwillem/mazebot/cmd/mazebot@latest
//
// # Usage
//
// First, run setup to find the robot and calibrate its sensors:
//
//	mazebot setup
//
// Then put the robot at the maze start and explore:
//
//	mazebot explore
//
// Past runs are listed with:
//
//	mazebot history
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/mazebot: CLI with setup, explore, history and info commands
//   - pkg/nav: Line following, intersection probing, turn selection and the path record
//   - pkg/robot: 3pi serial protocol, sensor calibration, and configuration
//   - pkg/store: Run history database
package mazebot
