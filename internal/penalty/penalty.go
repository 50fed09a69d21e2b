// Package penalty converts strike counts into owed penalties.
package penalty

import "errors"

var ErrNothingPending = errors.New("no pending penalty to pay")

// Rule is a group's penalty configuration: every Threshold strikes owe one
// penalty described by Description.
type Rule struct {
	Threshold   int    `json:"threshold"`
	Description string `json:"description"`
}

// Pending is floor(strikes/threshold) - paid, never negative. A rule with a
// non-positive threshold never produces penalties.
func Pending(strikes, threshold, paid int) int {
	if threshold <= 0 || strikes <= 0 {
		return 0
	}
	owed := strikes/threshold - paid
	if owed < 0 {
		return 0
	}
	return owed
}

// AdjustStrikes applies a +1/-1 change without dropping below zero.
func AdjustStrikes(strikes, delta int) int {
	next := strikes + delta
	if next < 0 {
		return 0
	}
	return next
}

// Pay returns the new paid count, or ErrNothingPending when nothing is owed.
func Pay(strikes, threshold, paid int) (int, error) {
	if Pending(strikes, threshold, paid) == 0 {
		return paid, ErrNothingPending
	}
	return paid + 1, nil
}
