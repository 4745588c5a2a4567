package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/mazebot/pkg/nav"
	"github.com/gwillem/mazebot/pkg/robot"
	"github.com/gwillem/mazebot/pkg/store"
)

type ExploreCommand struct {
	Headless    bool   `long:"headless" description:"Log to stderr instead of showing the live view"`
	DB          string `long:"db" default:"mazebot.db" description:"Run history database"`
	Capacity    int    `long:"capacity" description:"Maximum number of recorded turns (default from config)"`
	Calibration string `long:"calibration" description:"Load sensor calibration from this JSON file instead of the config"`
}

const (
	headerHeight = 3 // title + path line + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

const (
	seriesError = "error"
	seriesSteer = "steer"
)

var seriesColors = map[string]string{
	seriesError: "196", // red
	seriesSteer: "51",  // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	pathStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

type exploreModel struct {
	explorer *nav.Explorer
	chart    *streamlinechart.Model
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N log messages
	state    nav.State
	result   *nav.Result
	runErr   error
	cancel   context.CancelFunc
	quitting bool
}

func (m *exploreModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the explorer
type stateMsg nav.State
type logMsg string
type doneMsg struct {
	result *nav.Result
	err    error
}

func waitForState(e *nav.Explorer) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-e.States())
	}
}

func waitForLog(e *nav.Explorer) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-e.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *exploreModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *exploreModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialExploreModel(e *nav.Explorer, cancel context.CancelFunc) exploreModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-100, 100),
	)

	for _, name := range []string{seriesError, seriesSteer} {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name]))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}

	return exploreModel{
		explorer: e,
		chart:    &chart,
		cancel:   cancel,
	}
}

// chartPoints scales a steering step to the chart's -100..100 range:
// line error in hundredths of the half-width, steer as percent of base speed.
func chartPoints(s nav.Steer, baseSpeed int) (errPct, steerPct float64) {
	errPct = float64(s.Error) / 20
	if baseSpeed > 0 {
		steerPct = float64(s.PowerDifference) * 100 / float64(baseSpeed)
	}
	return errPct, steerPct
}

func (m exploreModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.explorer),
		waitForLog(m.explorer),
	)
}

func (m exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		state := nav.State(msg)
		m.state = state
		// Freeze the chart outside line following
		if state.Phase == nav.PhaseFollowing && state.Tick > 0 {
			e, s := chartPoints(state.Steer, m.explorer.Config().BaseSpeed)
			m.chart.PushDataSet(seriesError, e)
			m.chart.PushDataSet(seriesSteer, s)
			m.chart.DrawAll()
		}
		return m, waitForState(m.explorer)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.explorer)

	case doneMsg:
		m.result = msg.result
		m.runErr = msg.err
		return m, nil
	}

	return m, nil
}

func (m exploreModel) View() string {
	if m.quitting {
		return "Exploration stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("mazebot Explore"))
	sb.WriteString(fmt.Sprintf(" - %s", m.state.Phase))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n")
	sb.WriteString("Path: " + pathStyle.Render(m.state.Path))
	sb.WriteString(statusStyle.Render(fmt.Sprintf("  tick %d  position %d  sensors [%s]",
		m.state.Tick, m.state.Position, renderBars(m.state.Reading))))
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	switch {
	case m.result != nil:
		lines := append([]string{}, m.logs...)
		lines = append(lines, resultLine(m.result, m.runErr)+"  (press 'q' to quit)")
		logLines = strings.Join(lines, "\n")
	case len(m.logs) == 0:
		logLines = statusStyle.Render("Press 'q' to stop")
	default:
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	labels := map[string]string{
		seriesError: "line error",
		seriesSteer: "steering",
	}
	var items []string
	for _, name := range []string{seriesError, seriesSteer} {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+labels[name])
	}
	return strings.Join(items, "  ")
}

func resultLine(res *nav.Result, err error) string {
	line := fmt.Sprintf("%s: path %s, %d intersections, %d ticks in %s",
		res.Outcome, res.Path, res.Intersections, res.Ticks, res.Finished.Sub(res.Started).Round(time.Millisecond))
	if err != nil {
		line += fmt.Sprintf(" (%v)", err)
	}
	return line
}

func (c *ExploreCommand) Execute(args []string) error {
	// Load config
	cfg, err := robot.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'mazebot setup' first.")
		os.Exit(1)
	}

	if cfg.Port == "" {
		fmt.Fprintln(os.Stderr, "Robot not configured. Run 'mazebot setup' first.")
		os.Exit(1)
	}

	if c.Calibration != "" {
		cal, err := robot.LoadCalibration(c.Calibration)
		if err != nil {
			log.Fatalf("Failed to load calibration: %v", err)
		}
		cfg.Calibration = cal
	}

	if !cfg.IsCalibrated() {
		fmt.Fprintln(os.Stderr, "Sensors not calibrated. Run 'mazebot setup' first.")
		os.Exit(1)
	}

	fmt.Printf("Loaded configuration from %s\n", robot.DefaultConfigFile)

	navCfg := cfg.Navigation
	if c.Capacity > 0 {
		navCfg.PathCapacity = c.Capacity
	}

	db, err := store.Open(c.DB)
	if err != nil {
		log.Fatalf("Failed to open run history: %v", err)
	}
	defer db.Close()

	board, err := robot.Open(cfg.Port, cfg.BaudRate, cfg.Calibration)
	if err != nil {
		log.Fatalf("Failed to open robot: %v", err)
	}
	defer board.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	battery, err := board.BatteryMillivolts(ctx)
	if err != nil {
		log.Printf("Battery read failed: %v", err)
	} else {
		log.Printf("Battery: %.2f V", float64(battery)/1000)
	}

	explorer, err := nav.NewExplorer(board, nil, navCfg)
	if err != nil {
		log.Fatalf("Failed to create explorer: %v", err)
	}

	var (
		res    *nav.Result
		runErr error
	)
	if c.Headless {
		res, runErr = runHeadless(ctx, explorer)
	} else {
		res, runErr = runWithTUI(ctx, cancel, explorer)
	}

	fmt.Println(resultLine(res, runErr))

	run := store.RunFromResult(res, runErr)
	run.BatteryMV = battery
	if _, err := db.SaveRun(context.Background(), run); err != nil {
		log.Printf("Failed to save run: %v", err)
	} else {
		fmt.Printf("Run %s saved to %s\n", run.ID, c.DB)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
	return nil
}

func runHeadless(ctx context.Context, explorer *nav.Explorer) (*nav.Result, error) {
	done := make(chan struct{})
	go func() {
		for {
			select {
			case msg := <-explorer.Logs():
				log.Print(msg)
			case <-done:
				return
			}
		}
	}()

	res, err := explorer.Run(ctx)
	close(done)

	// Flush what the explorer logged last
	for {
		select {
		case msg := <-explorer.Logs():
			log.Print(msg)
		default:
			return res, err
		}
	}
}

func runWithTUI(ctx context.Context, cancel context.CancelFunc, explorer *nav.Explorer) (*nav.Result, error) {
	p := tea.NewProgram(initialExploreModel(explorer, cancel), tea.WithAltScreen())

	type outcome struct {
		res *nav.Result
		err error
	}
	finished := make(chan outcome, 1)

	go func() {
		res, err := explorer.Run(ctx)
		finished <- outcome{res, err}
		p.Send(doneMsg{result: res, err: err})
	}()

	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	// Quitting the view cancels a run still in progress
	cancel()
	o := <-finished
	return o.res, o.err
}
