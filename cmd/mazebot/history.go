package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/mazebot/pkg/nav"
	"github.com/gwillem/mazebot/pkg/store"
)

type HistoryCommand struct {
	DB    string `long:"db" default:"mazebot.db" description:"Run history database"`
	Limit int    `long:"limit" short:"n" default:"20" description:"Number of runs to show (0 for all)"`
}

func (c *HistoryCommand) Execute(args []string) error {
	db, err := store.Open(c.DB)
	if err != nil {
		log.Fatalf("Failed to open run history: %v", err)
	}
	defer db.Close()

	runs, err := db.Runs(context.Background(), c.Limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded yet. Start one with: " + headerStyle.Render("mazebot explore"))
		return nil
	}

	fmt.Println(historyTable(runs))
	return nil
}

func historyTable(runs []store.Run) string {
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableGoalStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableFailStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	tablePathStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID[:min(8, len(r.ID))],
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Duration().Round(time.Millisecond).String(),
			string(r.Outcome),
			fmt.Sprintf("%d", r.Intersections),
			r.Path,
			r.TickStats.Mean.Round(time.Microsecond).String(),
			r.TickStats.P99.Round(time.Microsecond).String(),
			batteryString(r.BatteryMV),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Run", "Started", "Duration", "Outcome", "Turns", "Path", "Tick mean", "Tick p99", "Battery").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 3:
				if row >= 0 && row < len(runs) && runs[row].Outcome == nav.OutcomeGoal {
					return tableGoalStyle
				}
				return tableFailStyle
			case 5:
				return tablePathStyle
			default:
				return tableCellStyle
			}
		})

	return t.Render()
}

func batteryString(mv int) string {
	if mv <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f V", float64(mv)/1000)
}
