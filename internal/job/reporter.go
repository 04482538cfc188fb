package job

import (
	"errors"

	"go.uber.org/zap"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
)

// reporter coalesces per-bar progress into Running writes spaced at least
// step apart. 1.0 is always written.
type reporter struct {
	job     *Job
	step    float64
	last    float64
	publish func(domain.ProgressUpdate)
	logger  *zap.Logger
}

func newReporter(j *Job, step float64, publish func(domain.ProgressUpdate), logger *zap.Logger) *reporter {
	return &reporter{job: j, step: step, publish: publish, logger: logger}
}

func (p *reporter) report(progress float64) {
	if progress < 1 && progress-p.last < p.step {
		return
	}

	if err := p.job.SetProgress(progress); err != nil {
		if errors.Is(err, ErrInvalidProgress) {
			observability.RecordInvalidProgress()
			p.logger.DPanic("progress regression",
				zap.String("job_id", p.job.ID()),
				zap.Float64("progress", progress),
				zap.Float64("last", p.last),
			)
		}
		return
	}
	p.last = progress
	p.publish(p.job.Progress())
}
