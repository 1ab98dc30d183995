package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

// ErrStageGap is returned when a later stage is recorded while an earlier one is not.
var ErrStageGap = errors.New("stage timestamps out of order")

// StageTimestamps records when each forward stage was reached.
type StageTimestamps struct {
	PlacedAt         *time.Time `json:"placed_at,omitempty" dynamodbav:"placed_at,omitempty"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty" dynamodbav:"confirmed_at,omitempty"`
	PickedAt         *time.Time `json:"picked_at,omitempty" dynamodbav:"picked_at,omitempty"`
	PackedAt         *time.Time `json:"packed_at,omitempty" dynamodbav:"packed_at,omitempty"`
	OutForDeliveryAt *time.Time `json:"out_for_delivery_at,omitempty" dynamodbav:"out_for_delivery_at,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty" dynamodbav:"delivered_at,omitempty"`
}

func (ts *StageTimestamps) slot(s Status) **time.Time {
	switch s {
	case StatusPlaced:
		return &ts.PlacedAt
	case StatusConfirmed:
		return &ts.ConfirmedAt
	case StatusPicked:
		return &ts.PickedAt
	case StatusPacked:
		return &ts.PackedAt
	case StatusOutForDelivery:
		return &ts.OutForDeliveryAt
	case StatusDelivered:
		return &ts.DeliveredAt
	default:
		return nil
	}
}

// At returns the timestamp recorded for stage s, if any.
func (ts StageTimestamps) At(s Status) *time.Time {
	p := ts.slot(s)
	if p == nil {
		return nil
	}
	return *p
}

// Set records t for stage s. Non-forward statuses are ignored.
func (ts *StageTimestamps) Set(s Status, t time.Time) {
	if p := ts.slot(s); p != nil {
		t := t.UTC()
		*p = &t
	}
}

// Validate checks that a populated stage never follows an empty one.
func (ts StageTimestamps) Validate() error {
	gap := Status("")
	for _, s := range ForwardStages {
		if ts.At(s) == nil {
			if gap == "" {
				gap = s
			}
			continue
		}
		if gap != "" {
			return fmt.Errorf("%w: stage %s is set but earlier stage %s is not", ErrStageGap, s, gap)
		}
	}
	return nil
}

// Backfill fills stages that records from older writers left empty. Every
// stage up to the one status implies (or the latest recorded one, for
// terminal statuses) takes the time of the next recorded stage, or fallback
// when none is recorded.
func (ts *StageTimestamps) Backfill(status Status, fallback time.Time) {
	last := status.Index()
	for i, s := range ForwardStages {
		if ts.At(s) != nil && i > last {
			last = i
		}
	}
	next := fallback.UTC()
	for i := last; i >= 0; i-- {
		p := ts.slot(ForwardStages[i])
		if *p == nil {
			t := next
			*p = &t
			continue
		}
		next = **p
	}
}

// StageState is the display state of one timeline stage.
type StageState string

const (
	StageCompleted StageState = "completed"
	StageCurrent   StageState = "current"
	StagePending   StageState = "pending"
)

// Stage is one entry of a rendered timeline.
type Stage struct {
	Status Status     `json:"status"`
	Label  string     `json:"label"`
	State  StageState `json:"state"`
	At     *time.Time `json:"at,omitempty"`
}

// Timeline is the progress bar for an order.
type Timeline struct {
	Stages []Stage `json:"stages"`
	// Terminal is set for cancelled and returned orders, whose bar is frozen.
	Terminal Status `json:"terminal,omitempty"`
	Banner   string `json:"banner,omitempty"`
}

// BuildTimeline renders the six forward stages for an order at status.
func BuildTimeline(status Status, ts StageTimestamps) Timeline {
	tl := Timeline{Stages: make([]Stage, 0, len(ForwardStages))}

	if status == StatusCancelled || status == StatusReturned {
		tl.Terminal = status
		tl.Banner = banner(status)
		for _, s := range ForwardStages {
			st := Stage{Status: s, Label: s.Label(), State: StagePending, At: ts.At(s)}
			if st.At != nil {
				st.State = StageCompleted
			}
			tl.Stages = append(tl.Stages, st)
		}
		return tl
	}

	cur := status.Index()
	for i, s := range ForwardStages {
		st := Stage{Status: s, Label: s.Label(), At: ts.At(s)}
		switch {
		case i < cur, status == StatusDelivered:
			st.State = StageCompleted
		case i == cur:
			st.State = StageCurrent
		default:
			st.State = StagePending
		}
		tl.Stages = append(tl.Stages, st)
	}
	return tl
}

// Current returns the stage marked current, if any.
func (t Timeline) Current() (Stage, bool) {
	for _, s := range t.Stages {
		if s.State == StageCurrent {
			return s, true
		}
	}
	return Stage{}, false
}

// Progress is the fraction of stages completed, in [0, 1].
func (t Timeline) Progress() float64 {
	if len(t.Stages) == 0 {
		return 0
	}
	done := 0
	for _, s := range t.Stages {
		if s.State == StageCompleted {
			done++
		}
	}
	return float64(done) / float64(len(t.Stages))
}

func banner(s Status) string {
	switch s {
	case StatusCancelled:
		return "This order was cancelled"
	case StatusReturned:
		return "This order was returned to the vendor"
	default:
		return ""
	}
}
