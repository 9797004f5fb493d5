package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mltrack/backend/internal/config"
	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/infrastructure/logger"
)

// Client implements ports.TrainerClient against the trainer's REST API.
// The request timeout is deliberately shorter than the status poll
// interval, so one slow probe can never pile up behind the next tick.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *logger.Logger
}

func New(cfg config.TrainerConfig, log *logger.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.APIToken,
		http:    &http.Client{Timeout: timeout},
		logger:  log,
	}
}

func (c *Client) StartTraining(ctx context.Context, input ports.StartTrainingInput) (string, error) {
	payload := map[string]interface{}{
		"algorithm": input.Algorithm,
		"dataset":   input.Dataset,
		"options":   input.Options,
	}
	return c.launch(ctx, "/api/v1/trainings", payload)
}

func (c *Client) StartCustomTraining(ctx context.Context, input ports.StartCustomTrainingInput) (string, error) {
	payload := map[string]interface{}{
		"script":  input.Script,
		"dataset": input.Dataset,
		"options": input.Options,
	}
	return c.launch(ctx, "/api/v1/trainings/custom", payload)
}

func (c *Client) Retrain(ctx context.Context, input ports.RetrainInput) (string, error) {
	payload := map[string]interface{}{
		"custom":  input.Custom,
		"dataset": input.Dataset,
		"options": input.Options,
	}
	return c.launch(ctx, fmt.Sprintf("/api/v1/models/%s/retrain", input.ModelID), payload)
}

// launch POSTs a job request and returns the task id the trainer assigned.
func (c *Client) launch(ctx context.Context, path string, payload map[string]interface{}) (string, error) {
	body, status, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusAccepted {
		return "", fmt.Errorf("trainer API error: status=%d body=%s", status, string(body))
	}

	var result struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse launch response: %w", err)
	}
	if result.TaskID == "" {
		return "", fmt.Errorf("trainer accepted the job but returned no task_id")
	}

	c.logger.Infow("trainer accepted job", "task_id", result.TaskID, "path", path)
	return result.TaskID, nil
}

// TaskStatus asks the trainer where a job stands. Unknown status strings
// and extra response fields are passed through untouched.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (ports.StatusReport, error) {
	body, status, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%s/status", taskID), nil)
	if err != nil {
		return ports.StatusReport{}, err
	}
	if status != http.StatusOK {
		return ports.StatusReport{}, fmt.Errorf("trainer API error: status=%d body=%s", status, string(body))
	}

	var result struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return ports.StatusReport{}, fmt.Errorf("failed to parse status response: %w", err)
	}
	if result.Status == "" {
		return ports.StatusReport{}, fmt.Errorf("trainer returned an empty status for task %s", taskID)
	}

	return ports.StatusReport{Status: result.Status, ErrorMessage: result.ErrorMessage}, nil
}

// StopTask asks the trainer to halt a job. A 2xx answer only acknowledges
// the request; the job is not stopped until a later status probe says so.
func (c *Client) StopTask(ctx context.Context, taskID string) error {
	body, status, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/stop", taskID), nil)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("trainer API error: status=%d body=%s", status, string(body))
	}
	return nil
}

// ListModels fetches the trainer's model catalog for the retrain picker.
func (c *Client) ListModels(ctx context.Context) ([]ports.ModelInfo, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/api/v1/models", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("trainer API error: status=%d body=%s", status, string(body))
	}

	var result struct {
		Models []ports.ModelInfo `json:"models"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse model list response: %w", err)
	}
	return result.Models, nil
}

// do sends one request and returns the raw body and status code. A 401 or
// 403 becomes ports.ErrTrainerUnauthorized so callers can tell expired
// credentials apart from an unreachable trainer.
func (c *Client) do(ctx context.Context, method, path string, payload map[string]interface{}) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonPayload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to reach trainer: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, resp.StatusCode, fmt.Errorf("%w: status=%d", ports.ErrTrainerUnauthorized, resp.StatusCode)
	}

	return body, resp.StatusCode, nil
}
