package nav

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Phase is the part of the exploration cycle the robot is in.
type Phase string

const (
	PhaseFollowing Phase = "following"
	PhaseProbing   Phase = "probing"
	PhaseTurning   Phase = "turning"
	PhaseFinished  Phase = "finished"
)

// Outcome is how an exploration run ended.
type Outcome string

const (
	OutcomeGoal        Outcome = "goal"
	OutcomePathFull    Outcome = "path_full"
	OutcomeSensorFault Outcome = "sensor_fault"
	OutcomeAborted     Outcome = "aborted"
	OutcomeError       Outcome = "error"
)

// State is a telemetry snapshot published by the explorer.
type State struct {
	Phase     Phase
	Tick      int
	Position  int
	Steer     Steer
	Reading   Reading
	Path      string
	Turn      TurnSymbol // last turn taken, zero before the first
	Timestamp time.Time
}

// TickStats summarises control tick latency.
type TickStats struct {
	Count  int
	Mean   time.Duration
	StdDev time.Duration
	P99    time.Duration
	Max    time.Duration
}

// Result describes a finished exploration run.
type Result struct {
	Path          *Path
	Intersections int
	Outcome       Outcome
	Ticks         int
	TickStats     TickStats
	Started       time.Time
	Finished      time.Time
}

const latencyWindow = 4096

// Explorer runs the follow, probe, decide, turn, record cycle until the
// goal pattern is seen.
type Explorer struct {
	hw       Hardware
	clock    Clock
	cfg      Config
	follower *Follower
	prober   *Prober
	executor *Executor

	stateCh chan State
	logCh   chan string

	// per run
	path      *Path
	ticks     int
	latencies []float64
	maxLat    time.Duration
	lastTurn  TurnSymbol
}

// NewExplorer creates an explorer for hw.
func NewExplorer(hw Hardware, clock Clock, cfg Config) (*Explorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid navigation config: %w", err)
	}
	if clock == nil {
		clock = SystemClock{}
	}

	e := &Explorer{
		hw:       hw,
		clock:    clock,
		cfg:      cfg,
		follower: NewFollower(hw, clock, cfg),
		prober:   NewProber(hw, clock, cfg),
		executor: NewExecutor(hw, clock, cfg),
		stateCh:  make(chan State, 1),
		logCh:    make(chan string, 32),
	}
	e.follower.Observe = e.observe
	e.follower.Fault = func(err error) { e.log("Sensor fault: %v", err) }
	e.prober.Fault = func(err error) { e.log("Probe fault: %v", err) }
	return e, nil
}

// States returns a channel that receives the latest telemetry.
func (e *Explorer) States() <-chan State {
	return e.stateCh
}

// Logs returns a channel that receives log messages.
func (e *Explorer) Logs() <-chan string {
	return e.logCh
}

// Config returns the navigation config in use.
func (e *Explorer) Config() Config {
	return e.cfg
}

func (e *Explorer) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", e.clock.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case e.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Run explores until the goal is reached or the run fails. The returned
// result is never nil; on failure it holds the partial path and the
// motors have been stopped.
func (e *Explorer) Run(ctx context.Context) (*Result, error) {
	e.path = NewPath(e.cfg.PathCapacity)
	e.ticks = 0
	e.latencies = e.latencies[:0]
	e.maxLat = 0
	e.lastTurn = 0

	res := &Result{Path: e.path, Started: e.clock.Now()}
	e.log("Exploration started (path capacity %d)", e.cfg.PathCapacity)

	err := e.explore(ctx, res)

	res.Ticks = e.ticks
	res.TickStats = e.tickStats()
	res.Finished = e.clock.Now()
	res.Outcome = outcomeFor(err)

	if err != nil {
		if stopErr := e.hw.SetMotors(context.Background(), 0, 0); stopErr != nil {
			e.log("Warning: failed to stop motors: %v", stopErr)
		}
		e.log("Exploration stopped: %v", err)
	} else {
		e.log("Goal reached after %d intersections, path %s", res.Intersections, e.path)
	}
	e.publish(State{Phase: PhaseFinished})
	return res, err
}

func (e *Explorer) explore(ctx context.Context, res *Result) error {
	faults := 0
	for {
		e.publish(State{Phase: PhaseFollowing})
		exit, err := e.follower.Follow(ctx)
		if err != nil {
			return err
		}
		if exit == ExitSensorFault {
			faults++
			if faults >= e.cfg.MaxSensorFaults {
				return fmt.Errorf("%d consecutive faulted segments: %w", faults, ErrSensorFault)
			}
		} else {
			faults = 0
		}

		e.publish(State{Phase: PhaseProbing})
		probe, err := e.prober.Probe(ctx)
		if err != nil {
			return err
		}
		if probe.Goal {
			if err := e.hw.SetMotors(ctx, 0, 0); err != nil {
				return fmt.Errorf("stop at goal: %w", err)
			}
			return nil
		}

		turn := SelectTurn(probe.Branches)
		res.Intersections++
		e.log("Intersection %d: %s exit, branches %s, turning %v",
			res.Intersections, exit, branchString(probe.Branches), turn)

		e.publish(State{Phase: PhaseTurning, Turn: turn})
		if err := e.executor.Execute(ctx, turn); err != nil {
			return err
		}
		if err := e.path.Append(turn); err != nil {
			return err
		}
		e.lastTurn = turn
	}
}

func (e *Explorer) observe(t Tick) {
	e.ticks++
	if t.Latency > e.maxLat {
		e.maxLat = t.Latency
	}
	if len(e.latencies) < latencyWindow {
		e.latencies = append(e.latencies, float64(t.Latency))
	} else {
		e.latencies[e.ticks%latencyWindow] = float64(t.Latency)
	}
	e.publish(State{
		Phase:    PhaseFollowing,
		Position: t.Position,
		Steer:    t.Steer,
		Reading:  t.Reading,
	})
}

func (e *Explorer) publish(s State) {
	s.Tick = e.ticks
	s.Path = e.path.String()
	if s.Turn == 0 {
		s.Turn = e.lastTurn
	}
	s.Timestamp = e.clock.Now()
	select {
	case e.stateCh <- s:
	default:
		// Replace the stale state
		select {
		case <-e.stateCh:
		default:
		}
		select {
		case e.stateCh <- s:
		default:
		}
	}
}

func (e *Explorer) tickStats() TickStats {
	n := len(e.latencies)
	if n == 0 {
		return TickStats{}
	}
	sorted := make([]float64, n)
	copy(sorted, e.latencies)
	sort.Float64s(sorted)

	ts := TickStats{
		Count: n,
		Max:   e.maxLat,
		P99:   time.Duration(stat.Quantile(0.99, stat.Empirical, sorted, nil)),
	}
	if n < 2 {
		ts.Mean = time.Duration(sorted[0])
		return ts
	}
	mean, std := stat.MeanStdDev(sorted, nil)
	ts.Mean = time.Duration(mean)
	ts.StdDev = time.Duration(std)
	return ts
}

func outcomeFor(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeGoal
	case errors.Is(err, ErrPathFull):
		return OutcomePathFull
	case errors.Is(err, ErrSensorFault):
		return OutcomeSensorFault
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeAborted
	default:
		return OutcomeError
	}
}

func branchString(b BranchSet) string {
	s := []byte("---")
	if b.Left {
		s[0] = 'L'
	}
	if b.Straight {
		s[1] = 'S'
	}
	if b.Right {
		s[2] = 'R'
	}
	return string(s)
}
