package simulation

import (
	"errors"

	"backtest-lab/internal/domain"
)

// configError is a configuration error whose message is shown to pollers
// verbatim; it matches domain.ErrInvalidConfiguration.
type configError struct {
	msg string
}

func (e *configError) Error() string { return e.msg }

func (e *configError) Is(target error) bool { return target == domain.ErrInvalidConfiguration }

// Loop errors
var (
	ErrInvalidQuantity error = &configError{msg: "invalid quantity"}
	ErrInvalidRisk     error = &configError{msg: "invalid risk configuration"}

	ErrStrategy        = errors.New("strategy error")
	ErrInvalidDecision = errors.New("invalid strategy decision")
	ErrNonFinitePrice  = errors.New("non-finite price")
	ErrInvalidExit     = errors.New("invalid exit")
	ErrCancelled       = errors.New("cancelled")
)
