package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInsufficientData      = errors.New("insufficient data to train")
	ErrInsufficientHistory   = errors.New("insufficient history to forecast")
	ErrArtifactNotFound      = errors.New("model not trained yet")
	ErrInvalidHorizon        = errors.New("invalid forecast horizon")
	ErrFeatureSchemaMismatch = errors.New("feature schema mismatch")
	ErrTrainingInProgress    = errors.New("training already in progress")
	ErrHistoryGap            = errors.New("history has a gap")
	ErrUnorderedHistory      = errors.New("history is not ordered")
	ErrInvalidMeasurement    = errors.New("invalid measurement")
	ErrBuildingMismatch      = errors.New("history belongs to another building")
)

// InsufficientDataError reports how many rows training needs.
type InsufficientDataError struct {
	Required int
	Got      int
	Stage    string // "history" or "split"
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("not enough data to train (%s): need ≥%d hourly rows, got %d", e.Stage, e.Required, e.Got)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

type InsufficientHistoryError struct {
	Required int
	Got      int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("need ≥%d hours history to forecast, got %d", e.Required, e.Got)
}

func (e *InsufficientHistoryError) Unwrap() error { return ErrInsufficientHistory }

type InvalidHorizonError struct {
	Horizon int
	Max     int
}

func (e *InvalidHorizonError) Error() string {
	return fmt.Sprintf("horizon %d outside [1, %d]", e.Horizon, e.Max)
}

func (e *InvalidHorizonError) Unwrap() error { return ErrInvalidHorizon }

// FeatureSchemaMismatchError means the artifact was fitted on a feature layout
// that differs from what the running feature builder produces. It is never
// recoverable without retraining.
type FeatureSchemaMismatchError struct {
	Artifact []string
	Builder  []string
}

func (e *FeatureSchemaMismatchError) Error() string {
	return fmt.Sprintf("artifact features [%s] != builder features [%s]",
		strings.Join(e.Artifact, ","), strings.Join(e.Builder, ","))
}

func (e *FeatureSchemaMismatchError) Unwrap() error { return ErrFeatureSchemaMismatch }

type HistoryGapError struct {
	After  time.Time
	Before time.Time
}

func (e *HistoryGapError) Error() string {
	return fmt.Sprintf("missing hours between %s and %s",
		e.After.Format(time.RFC3339), e.Before.Format(time.RFC3339))
}

func (e *HistoryGapError) Unwrap() error { return ErrHistoryGap }

// BuildingMismatchError means a forecast was asked to roll one building's
// model over another building's history.
type BuildingMismatchError struct {
	Artifact string
	History  string
}

func (e *BuildingMismatchError) Error() string {
	return fmt.Sprintf("artifact of %q cannot forecast history of %q", e.Artifact, e.History)
}

func (e *BuildingMismatchError) Unwrap() error { return ErrBuildingMismatch }
