package main

import (
	"strings"
	"testing"
	"time"

	"github.com/gwillem/mazebot/pkg/nav"
	"github.com/gwillem/mazebot/pkg/store"
)

func TestHistoryTable(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	runs := []store.Run{
		{
			ID:            "0f8e2c1a-6b1d-4c47-9d43-3c2f5a1e7b90",
			StartedAt:     start,
			FinishedAt:    start.Add(31 * time.Second),
			Outcome:       nav.OutcomeGoal,
			Path:          "LBLLSR",
			Intersections: 6,
			BatteryMV:     4870,
		},
		{
			ID:         "short",
			StartedAt:  start,
			FinishedAt: start.Add(time.Second),
			Outcome:    nav.OutcomeAborted,
		},
	}

	got := historyTable(runs)
	for _, want := range []string{"0f8e2c1a", "LBLLSR", "goal", "aborted", "31s", "4.87 V", "short"} {
		if !strings.Contains(got, want) {
			t.Errorf("table missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "6b1d") {
		t.Error("run ID not shortened")
	}
}

func TestBatteryString(t *testing.T) {
	if got := batteryString(0); got != "-" {
		t.Errorf("batteryString(0) = %q", got)
	}
	if got := batteryString(5012); got != "5.01 V" {
		t.Errorf("batteryString(5012) = %q", got)
	}
}
