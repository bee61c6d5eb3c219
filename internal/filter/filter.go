// Package filter implements the subscription filter predicate: given a
// candidate value, the last delivered observation, and an optional filter
// spec, decide whether a notification should be delivered, skipped, or
// reported as an error.
package filter

import (
	"time"

	"github.com/vehicle-signal/vis-server/internal/codec"
	"github.com/vehicle-signal/vis-server/internal/errorset"
)

// Decision is the three-way outcome of evaluating a filter against a
// candidate value.
type Decision int

const (
	Skip Decision = iota
	Deliver
	Error
)

// LastDelivered is the (time, value) pair a subscription remembers from its
// most recent emitted notification. A zero Time means "none yet".
type LastDelivered struct {
	At    time.Time
	Value codec.Value
}

func (l *LastDelivered) present() bool {
	return l != nil && !l.At.IsZero()
}

// Evaluate runs the matches predicate for one candidate observation. now is
// the instant the caller is evaluating at, so interval gating does not
// depend on wall-clock reads happening inside this function.
func Evaluate(candidate codec.Value, last *LastDelivered, f *codec.Filters, now time.Time) (Decision, *errorset.AppError) {
	if last.present() && candidate.Equal(last.Value) {
		return Skip, nil
	}

	if f == nil {
		return Deliver, nil
	}

	if f.IntervalMillis != nil && last.present() {
		elapsed := now.Sub(last.At)
		if elapsed < time.Duration(*f.IntervalMillis)*time.Millisecond {
			return Skip, nil
		}
	}

	if f.Range != nil {
		candidateNum, ok := candidate.AsNumber()
		if !ok {
			return Error, errorset.FilterInvalid("range filter requires a numeric value")
		}
		if f.Range.Above != nil && candidateNum.Cmp(*f.Range.Above) < 0 {
			return Skip, nil
		}
		if f.Range.Below != nil && candidateNum.Cmp(*f.Range.Below) > 0 {
			return Skip, nil
		}
	}

	if f.MinChange != nil {
		if !last.present() {
			return Deliver, nil
		}
		candidateNum, ok := candidate.AsNumber()
		if !ok {
			return Error, errorset.FilterInvalid("minChange filter requires a numeric value")
		}
		lastNum, ok := last.Value.AsNumber()
		if !ok {
			return Error, errorset.FilterInvalid("minChange filter requires a numeric last-delivered value")
		}
		diff := candidateNum.Sub(lastNum).Abs()
		if diff.Cmp(*f.MinChange) < 0 {
			return Skip, nil
		}
	}

	return Deliver, nil
}
