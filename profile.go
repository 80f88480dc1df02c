package cj

import (
	"fmt"
	"time"
)

// Profile accumulates where run-loop time goes, bucketed per tick stage.
// Other is the remainder of tick time not attributed to any stage; in
// practice it is dominated by the presentation engine's internal wait.
type Profile struct {
	Ticks uint64

	EventPoll      time.Duration
	Enumerate      time.Duration
	MinimizedCheck time.Duration
	BeginFrame     time.Duration
	Callback       time.Duration
	Execute        time.Duration
	Present        time.Duration
	PacingSleep    time.Duration
	Other          time.Duration
}

// Total returns the sum of all buckets.
func (p *Profile) Total() time.Duration {
	return p.EventPoll + p.Enumerate + p.MinimizedCheck + p.BeginFrame +
		p.Callback + p.Execute + p.Present + p.PacingSleep + p.Other
}

func (p *Profile) String() string {
	return fmt.Sprintf(
		"ticks=%d poll=%v enumerate=%v minimized=%v begin=%v callback=%v execute=%v present=%v pacing=%v other=%v",
		p.Ticks, p.EventPoll, p.Enumerate, p.MinimizedCheck, p.BeginFrame,
		p.Callback, p.Execute, p.Present, p.PacingSleep, p.Other)
}
