package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/engine"
)

// --- Request types ---

// SubmitJobRequest — постановка workflow в очередь.
type SubmitJobRequest struct {
	WorkflowID string           `json:"workflowId,omitempty"`
	Workflow   *domain.Workflow `json:"workflow"`
	UserInput  map[string]any   `json:"userInput,omitempty"`
}

// RunTaskRequest — синхронное выполнение одной задачи.
type RunTaskRequest struct {
	Task      domain.TaskDef `json:"task"`
	DataStore map[string]any `json:"dataStore,omitempty"`
}

// --- Response types ---

type submitJobResponse struct {
	JobID string `json:"jobId"`
}

type stopJobResponse struct {
	Stopped bool `json:"stopped"`
}

type runTaskResponse struct {
	Result any `json:"result"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибка, которую вернул сервер.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для PromptFlow API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// streamClient без таймаута: SSE-поток живёт до финального события.
	streamClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		streamClient: &http.Client{},
	}
}

// --- Jobs ---

// SubmitJob ставит workflow в очередь и возвращает ID job.
func (c *Client) SubmitJob(req SubmitJobRequest) (string, error) {
	var resp submitJobResponse
	if err := c.post("/api/v1/jobs", req, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// GetJob возвращает статус job.
func (c *Client) GetJob(id string) (*domain.Job, error) {
	var job domain.Job
	err := c.get("/api/v1/jobs/"+id, &job)
	return &job, err
}

// StopJob просит остановить job.
func (c *Client) StopJob(id string) (bool, error) {
	var resp stopJobResponse
	err := c.post("/api/v1/jobs/"+id+"/stop", nil, &resp)
	return resp.Stopped, err
}

// WatchJob читает SSE-поток событий job и вызывает fn для каждого.
// Возвращает nil после финального события или закрытия потока сервером.
func (c *Client) WatchJob(ctx context.Context, id string, fn func(domain.ProgressEvent)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/jobs/"+id+"/events", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	return readEvents(resp.Body, fn)
}

// readEvents разбирает поток Server-Sent Events.
// Учитываются только строки data:, комментарии пропускаются.
func readEvents(r io.Reader, fn func(domain.ProgressEvent)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10<<20)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var event domain.ProgressEvent
			if err := json.Unmarshal([]byte(data.String()), &event); err != nil {
				return fmt.Errorf("failed to decode event: %w", err)
			}
			data.Reset()

			fn(event)
			if event.IsTerminal() {
				return nil
			}

		case strings.HasPrefix(line, ":"):
			// keep-alive

		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	return scanner.Err()
}

// --- Tasks ---

// RunTask выполняет одну задачу синхронно.
func (c *Client) RunTask(req RunTaskRequest) (any, error) {
	var resp runTaskResponse
	err := c.post("/api/v1/tasks/run", req, &resp)
	return resp.Result, err
}

// --- Workflows ---

// ValidateWorkflow проверяет workflow на сервере.
func (c *Client) ValidateWorkflow(wf *domain.Workflow) (*engine.Report, error) {
	var report engine.Report
	body := map[string]any{"workflow": wf}
	err := c.post("/api/v1/workflows/validate", body, &report)
	return &report, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}
	return apiErr
}
