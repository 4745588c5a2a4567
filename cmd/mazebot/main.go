package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Setup   SetupCommand   `command:"setup" description:"Find the robot and calibrate its line sensors"`
	Explore ExploreCommand `command:"explore" alias:"run" description:"Explore the maze with the left-hand rule"`
	History HistoryCommand `command:"history" description:"Show recorded exploration runs"`
	Info    InfoCommand    `command:"info" description:"Show board signature, battery and sensor readings"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "mazebot - line maze explorer for the Pololu 3pi"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
