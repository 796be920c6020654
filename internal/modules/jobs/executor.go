package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/modules/strategies"
)

// Executor runs one frozen strategy snapshot to completion. The job engine
// only records the outcome; the extraction work itself lives behind this
// interface.
type Executor interface {
	Execute(ctx context.Context, job *Job, snapshot *strategies.Strategy) error
}

// HTTPExecutor posts snapshots to the extraction backend.
type HTTPExecutor struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewHTTPExecutor creates a new HTTP executor.
func NewHTTPExecutor(baseURL string, log zerolog.Logger) *HTTPExecutor {
	return &HTTPExecutor{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 120 * time.Second, // Extraction can take time
		},
		log: log.With().Str("client", "extractor").Logger(),
	}
}

type executeRequest struct {
	JobID    string               `json:"job_id"`
	Strategy *strategies.Strategy `json:"strategy"`
}

type executeResponse struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
}

// Execute posts the snapshot to POST {base}/execute and maps the backend's
// outcome to an error.
func (e *HTTPExecutor) Execute(ctx context.Context, job *Job, snapshot *strategies.Strategy) error {
	body, err := json.Marshal(executeRequest{
		JobID:    job.ID.String(),
		Strategy: snapshot,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("extractor request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read extractor response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("extractor returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result executeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to parse extractor response: %w", err)
	}

	if !result.Success {
		if result.Error != nil {
			return fmt.Errorf("extraction failed: %s", *result.Error)
		}
		return fmt.Errorf("extraction failed")
	}

	return nil
}

// NoopExecutor accepts every job without doing extraction work. Used when
// no extraction backend is configured, and in tests.
type NoopExecutor struct{}

// Execute implements Executor.
func (NoopExecutor) Execute(ctx context.Context, job *Job, snapshot *strategies.Strategy) error {
	return nil
}
