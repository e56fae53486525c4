package types

import "time"

// RunResult summarizes one report run.
type RunResult struct {
	Driver      string
	Schema      string
	Output      string
	Tables      int
	TimeColumns int
	Months      int
	Warnings    int
	Elapsed     time.Duration
}
