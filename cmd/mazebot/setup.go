package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.bug.st/serial"

	"github.com/gwillem/mazebot/pkg/nav"
	"github.com/gwillem/mazebot/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Battery below this is too weak for repeatable turn timing.
const lowBatteryMV = 4200

type SetupCommand struct {
	Port string `long:"port" description:"Serial port of the robot (skips the scan)"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("mazebot Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━"))
	fmt.Println()

	// Keep existing tuning when re-running setup
	config := robot.DefaultConfig()
	if robot.ConfigExists() {
		if existing, err := robot.LoadConfig(); err == nil {
			config = existing
		}
	}

	// Step 1: Find the robot
	port := c.Port
	if port == "" {
		port = scanForBoard()
	}
	config.Port = port

	board, err := robot.Open(port, config.BaudRate, robot.Calibration{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", port, err)
		os.Exit(1)
	}
	defer board.Close()

	ctx := context.Background()
	sig, err := board.Ping(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No 3pi on %s: %v\n", port, err)
		os.Exit(1)
	}
	fmt.Printf("Connected to %s on %s\n", sig, port)
	showBattery(ctx, board)

	// Step 2: Calibrate
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Calibrating Line Sensors ━━━"))
	fmt.Println()
	waitForUser("Place the robot on a line. It will spin in place to sample the sensors.")

	cal, err := board.Calibrate(ctx, nav.SystemClock{}, func(step int, raw nav.Reading) {
		fmt.Printf("\r  Sampling %2d/%d  %s", step+1, robot.CalibrationSteps, renderBars(scaleRaw(raw)))
	})
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Calibration failed: %v\n", err)
		os.Exit(1)
	}
	if !cal.IsCalibrated() {
		fmt.Println(warnStyle.Render("Some sensors saw no contrast. Check the robot is over a line and try again."))
		os.Exit(1)
	}
	config.Calibration = cal

	// Step 3: Verify with a live view
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("Check the readings"))
	fmt.Println("Slide the robot across the line. The bars should follow it.")
	fmt.Println()

	p := tea.NewProgram(newSensorModel(board))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running sensor view: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", robot.DefaultConfigFile)
	fmt.Println()
	fmt.Println("Put the robot at the maze start and run: " + headerStyle.Render("mazebot explore"))

	return nil
}

func scanForBoard() string {
	fmt.Println("Scanning for a 3pi robot...")
	fmt.Println()

	boards := findBoards()

	switch len(boards) {
	case 0:
		fmt.Println("No 3pi robot found.")
		fmt.Println("Make sure the robot is switched on and running the serial slave program.")
		os.Exit(1)
	case 1:
		return boards[0].port
	}

	var options []huh.Option[string]
	for _, b := range boards {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", b.port, b.signature), b.port))
	}

	var port string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which robot should be used?").
				Description(fmt.Sprintf("Found %d robots", len(boards))).
				Options(options...).
				Value(&port),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return port
}

type boardInfo struct {
	port      string
	signature string
}

func findBoards() []boardInfo {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var boards []boardInfo

	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		board, err := robot.Open(port, robot.DefaultBaudRate, robot.Calibration{})
		if err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		sig, err := board.Ping(ctx)
		cancel()
		board.Close()

		if err != nil {
			continue
		}
		fmt.Printf("  Found %s on %s\n", sig, port)
		boards = append(boards, boardInfo{port: port, signature: sig})
	}

	return boards
}

func showBattery(ctx context.Context, board *robot.Board) {
	mv, err := board.BatteryMillivolts(ctx)
	if err != nil {
		fmt.Printf("  Battery: %s\n", dimStyle.Render("unknown"))
		return
	}
	msg := fmt.Sprintf("  Battery: %.2f V", float64(mv)/1000)
	if mv < lowBatteryMV {
		fmt.Println(warnStyle.Render(msg + " (low, turns may overshoot)"))
		return
	}
	fmt.Println(msg)
}

// scaleRaw maps raw discharge times (0..2000) to the 0..1000 bar range
// before a calibration exists.
func scaleRaw(raw nav.Reading) nav.Reading {
	var r nav.Reading
	for i, v := range raw {
		r[i] = v / 2
	}
	return r
}

func waitForUser(prompt string) {
	fmt.Println(prompt)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("").
				Affirmative("Continue").
				Negative("").
				Value(new(bool)),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
}

// Live sensor TUI model
type sensorModel struct {
	board    *robot.Board
	reading  nav.Reading
	position int
	err      error
	quitting bool
}

type tickMsg time.Time

func newSensorModel(board *robot.Board) sensorModel {
	return sensorModel{board: board}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m sensorModel) Init() tea.Cmd {
	return tick()
}

func (m sensorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		r, pos, err := m.board.ReadLine(context.Background())
		m.err = err
		if err == nil {
			m.reading = r
			m.position = pos
		}
		return m, tick()
	}

	return m, nil
}

func (m sensorModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableOnLineStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)

	cells := make([]string, nav.NumSensors)
	for i, v := range m.reading {
		cells[i] = fmt.Sprintf("%4d", v)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("S0", "S1", "S2", "S3", "S4").
		Rows(cells).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if m.reading[col] > 200 {
				return tableOnLineStyle
			}
			return tableCellStyle
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  Bars [%s]  Position %4d\n", renderBars(m.reading), m.position))
	if m.err != nil {
		sb.WriteString(warnStyle.Render(fmt.Sprintf("  Read error: %v", m.err)))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("Press Enter when done"))

	return sb.String()
}
