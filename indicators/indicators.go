// Package indicators computes technical indicators over a price window.
//
// Every function is pure: the same window always yields the same value. When a
// window is too short the result is undetermined, reported either as
// ErrInsufficientHistory or as a Reading with Ready unset. Undetermined is not
// the same as neutral and callers must not treat it as a hold.
package indicators

import (
	"errors"
	"fmt"
)

var ErrInsufficientHistory = errors.New("insufficient history")

func insufficient(need, got int) error {
	return fmt.Errorf("%w: need %d points, got %d", ErrInsufficientHistory, need, got)
}

func checkPeriod(period int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	return nil
}

// Reading is a possibly undetermined indicator value.
type Reading struct {
	Value float64 `json:"value"`
	Ready bool    `json:"ready"`
}

func ready(v float64) Reading { return Reading{Value: v, Ready: true} }

func readingOf(v float64, err error) Reading {
	if err != nil {
		return Reading{}
	}
	return ready(v)
}
