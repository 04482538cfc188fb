package backtest

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/job"
	"backtest-lab/internal/storage"
)

// Registry is the subset of job.Registry the service submits to.
type Registry interface {
	Create(spec job.Spec) (string, error)
}

// ServiceOptions contains configuration for creating a Service.
type ServiceOptions struct {
	Registry         Registry
	Bars             storage.PriceBarReader
	DefaultTimeframe string      // used when a request has none
	Logger           *zap.Logger // default: zap.NewNop()
}

// Service starts backtest jobs from caller requests.
type Service struct {
	registry         Registry
	bars             storage.PriceBarReader
	defaultTimeframe string
	logger           *zap.Logger
}

// NewService creates a backtest service.
func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry:         opts.Registry,
		bars:             opts.Bars,
		defaultTimeframe: opts.DefaultTimeframe,
		logger:           logger,
	}
}

// Submit normalises the request and registers a job for it.
// It returns the job ID without waiting for the simulation.
func (s *Service) Submit(req domain.BacktestRequest) (string, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Timeframe == "" {
		req.Timeframe = s.defaultTimeframe
	}

	id, err := s.registry.Create(BuildSpec(s.bars, req))
	if err != nil {
		return "", err
	}
	s.logger.Debug("backtest submitted",
		zap.String("job_id", id),
		zap.String("timeframe", req.Timeframe),
		zap.Time("start", req.StartDate),
		zap.Time("end", req.EndDate),
	)
	return id, nil
}

// Symbols lists the symbols available in the bar store.
func (s *Service) Symbols(ctx context.Context) ([]string, error) {
	return s.bars.ListSymbols(ctx)
}
