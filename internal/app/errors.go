package app

import (
	"errors"

	"line-relay/internal/config"
	"line-relay/internal/line"
)

var (
	ErrValidation = errors.New("invalid input")
	ErrGeneration = errors.New("generation failed")

	// Re-exported so callers only need this package for errors.Is checks.
	ErrDelivery      = line.ErrDelivery
	ErrConfiguration = config.ErrConfiguration
)
