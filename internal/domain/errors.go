package domain

import "errors"

// Configuration and input errors shared by the simulation and the job layer.
var (
	// ErrInvalidConfiguration is returned for a job configuration that cannot run.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrMalformedSeries is returned when a PriceSeries breaks ordering or price rules.
	ErrMalformedSeries = errors.New("malformed series")
)
