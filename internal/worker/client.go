package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/me/mcsched/pkg/model"
)

// Client talks to the scheduler API on behalf of one worker.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu       sync.RWMutex
	workerID string
}

// NewClient creates a worker API client. A nil httpClient gets a pooled
// transport with a 30s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// WorkerID returns the registered worker ID.
func (c *Client) WorkerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.workerID
}

// Register registers the worker and remembers the ID the server returns.
// A previously assigned ID is sent along so the worker keeps its identity
// across reconnects.
func (c *Client) Register(ctx context.Context, address, name string) (*model.Worker, error) {
	body, err := json.Marshal(map[string]string{
		"id":      c.WorkerID(),
		"address": address,
		"name":    name,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/v1/workers", body)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	var worker model.Worker
	if err := decodeResponseData(resp, &worker); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	c.mu.Lock()
	c.workerID = worker.ID
	c.mu.Unlock()
	return &worker, nil
}

func (c *Client) resetWorkerID() {
	c.mu.Lock()
	c.workerID = ""
	c.mu.Unlock()
}

// Heartbeat reports the worker's current state.
func (c *Client) Heartbeat(ctx context.Context, state model.WorkerState) error {
	body, err := json.Marshal(map[string]string{"state": string(state)})
	if err != nil {
		return err
	}
	resp, err := c.doRequest(ctx, http.MethodPut,
		fmt.Sprintf("/api/v1/workers/%s/heartbeat", c.WorkerID()), body)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	resp.Body.Close()
	return nil
}

// RegisterChain advertises a model chain and returns the server's descriptor.
func (c *Client) RegisterChain(ctx context.Context, name, version string) (*model.ModelChain, error) {
	body, err := json.Marshal(map[string]string{"name": name, "version": version})
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/workers/%s/chains", c.WorkerID()), body)
	if err != nil {
		return nil, fmt.Errorf("register chain %s/%s: %w", name, version, err)
	}

	var chain model.ModelChain
	if err := decodeResponseData(resp, &chain); err != nil {
		return nil, fmt.Errorf("register chain %s/%s: %w", name, version, err)
	}
	return &chain, nil
}

// PollJob asks for the job assigned to this worker. It returns nil when the
// server has nothing for it (204).
func (c *Client) PollJob(ctx context.Context) (*model.Job, error) {
	resp, err := c.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("/api/v1/workers/%s/job", c.WorkerID()), nil)
	if err != nil {
		return nil, fmt.Errorf("poll: %w", err)
	}
	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return nil, nil
	}

	var job model.Job
	if err := decodeResponseData(resp, &job); err != nil {
		return nil, fmt.Errorf("poll: %w", err)
	}
	return &job, nil
}

// ReportJobState sends a job state update.
func (c *Client) ReportJobState(ctx context.Context, jobID string, state model.JobState) error {
	body, err := json.Marshal(map[string]string{"state": string(state)})
	if err != nil {
		return err
	}

	resp, err := c.doRequest(ctx, http.MethodPut,
		fmt.Sprintf("/api/v1/jobs/%s/state", jobID), body)
	if err != nil {
		return fmt.Errorf("report %s for %s: %w", state, jobID, err)
	}
	resp.Body.Close()
	return nil
}

// Deregister removes the worker from the server.
func (c *Client) Deregister(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodDelete,
		fmt.Sprintf("/api/v1/workers/%s", c.WorkerID()), nil)
	if err != nil {
		return fmt.Errorf("deregister: %w", err)
	}
	resp.Body.Close()
	return nil
}

// doRequest executes an HTTP request and returns the response. Error
// statuses are turned into an error carrying the server's APIError when the
// body has one.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		var envelope struct {
			Error *model.APIError `json:"error"`
		}
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error != nil {
			return nil, fmt.Errorf("HTTP %d: %w", resp.StatusCode, envelope.Error)
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)
	}

	return resp, nil
}

// decodeResponseData extracts the data field from the API response envelope.
func decodeResponseData(resp *http.Response, dest any) error {
	defer resp.Body.Close()

	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *model.APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}

	return json.Unmarshal(envelope.Data, dest)
}
