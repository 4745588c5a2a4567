package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gwillem/mazebot/pkg/robot"
)

type InfoCommand struct {
	Port string `long:"port" description:"Serial port to query (default: configured port, else scan)"`
}

func (c *InfoCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("mazebot Info"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━"))
	fmt.Println()

	cal := robot.Calibration{}
	port := c.Port
	if cfg, err := robot.LoadConfig(); err == nil {
		cal = cfg.Calibration
		if port == "" {
			port = cfg.Port
		}
	}

	ports := []string{port}
	if port == "" {
		ports = nil
		for _, b := range findBoards() {
			ports = append(ports, b.port)
		}
		fmt.Println()
	}
	if len(ports) == 0 {
		fmt.Println("No 3pi robot found.")
		os.Exit(1)
	}

	for _, p := range ports {
		if err := printBoardInfo(p, cal); err != nil {
			fmt.Printf("%s: %v\n", p, err)
		}
		fmt.Println()
	}
	return nil
}

func printBoardInfo(port string, cal robot.Calibration) error {
	board, err := robot.Open(port, robot.DefaultBaudRate, cal)
	if err != nil {
		return err
	}
	defer board.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sig, err := board.Signature(ctx)
	if err != nil {
		return fmt.Errorf("read signature: %w", err)
	}
	fmt.Println(subHeaderStyle.Render(port))
	fmt.Printf("  Signature:  %s\n", sig)
	showBattery(ctx, board)

	raw, err := board.ReadRaw(ctx)
	if err != nil {
		return fmt.Errorf("read sensors: %w", err)
	}
	fmt.Printf("  Raw:        %v\n", raw)

	if !cal.IsCalibrated() {
		fmt.Println(dimStyle.Render("  Not calibrated. Run 'mazebot setup'."))
		return nil
	}
	reading, pos, err := board.ReadLine(ctx)
	if err != nil {
		return fmt.Errorf("read line: %w", err)
	}
	fmt.Printf("  Calibrated: %v [%s]\n", reading, renderBars(reading))
	fmt.Printf("  Position:   %d\n", pos)
	return nil
}
