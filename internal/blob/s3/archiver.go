package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/reporting"
)

// Object names under <prefix><job_id>/.
const (
	TradesObject = "trades.csv"
	StatusObject = "status.json"
)

// uploader is the subset of manager.Uploader used by Archiver.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Archiver writes finished jobs to object storage.
// Completed jobs get trades.csv and status.json; failed jobs get status.json only.
type Archiver struct {
	up     uploader
	bucket string
	prefix string
}

// NewArchiver creates an Archiver writing below prefix in the client's bucket.
func NewArchiver(c *Client, prefix string) *Archiver {
	return &Archiver{
		up:     manager.NewUploader(c.s3),
		bucket: c.Bucket(),
		prefix: prefix,
	}
}

// statusDocument is the JSON body of status.json.
type statusDocument struct {
	JobID      string                `json:"job_id"`
	Symbol     string                `json:"symbol"`
	StrategyID string                `json:"strategy_id"`
	Status     domain.BacktestStatus `json:"status"`
	TradeCount int                   `json:"trade_count"`
	CreatedAt  time.Time             `json:"created_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

// Key returns the object key of a job's file.
func (a *Archiver) Key(jobID, object string) string {
	return a.prefix + path.Join(jobID, object)
}

// Save uploads the job's archive objects.
func (a *Archiver) Save(ctx context.Context, r *domain.JobResult) error {
	var status domain.BacktestStatus
	switch r.Status {
	case domain.StatusLabelCompleted:
		status = domain.Completed{Trades: r.Trades}
	case domain.StatusLabelFailed:
		status = domain.Failed{Error: r.Error}
	default:
		return fmt.Errorf("s3blob: job %s is not terminal", r.JobID)
	}

	if r.Status == domain.StatusLabelCompleted {
		var buf bytes.Buffer
		if err := reporting.WriteTradesCSV(&buf, r.Trades); err != nil {
			return fmt.Errorf("s3blob: encode trades: %w", err)
		}
		if err := a.put(ctx, a.Key(r.JobID, TradesObject), &buf, "text/csv"); err != nil {
			return err
		}
	}

	body, err := json.Marshal(statusDocument{
		JobID:      r.JobID,
		Symbol:     r.Symbol,
		StrategyID: r.StrategyID,
		Status:     status,
		TradeCount: len(r.Trades),
		CreatedAt:  r.CreatedAt,
		FinishedAt: r.FinishedAt,
	})
	if err != nil {
		return fmt.Errorf("s3blob: encode status: %w", err)
	}
	return a.put(ctx, a.Key(r.JobID, StatusObject), bytes.NewReader(body), "application/json")
}

func (a *Archiver) put(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := a.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: upload %s: %w", key, err)
	}
	return nil
}
