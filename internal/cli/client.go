package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// --- Response types (копии api/dto.go: CLI не импортирует internal/api) ---

// ActionResponse — запись action_log.
type ActionResponse struct {
	ID          int64  `json:"id"`
	NamespaceID int64  `json:"namespace_id"`
	Action      string `json:"action"`
	RecordID    int64  `json:"record_id"`
	Executed    bool   `json:"executed"`
	ExecutedAt  string `json:"executed_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// StatusResponse — состояние диспетчера.
type StatusResponse struct {
	InstanceID  string  `json:"instance_id"`
	State       string  `json:"state"`
	LockHeld    bool    `json:"lock_held"`
	InFlight    []int64 `json:"in_flight"`
	PoolSize    int     `json:"pool_size"`
	PoolRunning int     `json:"pool_running"`
	Pending     int64   `json:"pending"`
}

// --- Request types ---

// LogActionRequest — запись действия в лог.
type LogActionRequest struct {
	NamespaceID int64  `json:"namespace_id"`
	Action      string `json:"action"`
	RecordID    int64  `json:"record_id"`
}

// ListActionsOpts — параметры списка действий.
type ListActionsOpts struct {
	PendingOnly bool
	AfterID     int64
	Limit       int
}

// APIError — ошибка, которую вернул API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент API диспетчера.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Status возвращает состояние диспетчера.
func (c *Client) Status() (*StatusResponse, error) {
	var status StatusResponse
	err := c.get("/api/v1/status", &status)
	return &status, err
}

// ListActions возвращает записи лога.
func (c *Client) ListActions(opts ListActionsOpts) ([]ActionResponse, error) {
	params := url.Values{}
	if opts.PendingOnly {
		params.Set("pending", "true")
	}
	if opts.AfterID > 0 {
		params.Set("after_id", strconv.FormatInt(opts.AfterID, 10))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var actions []ActionResponse
	err := c.list("/api/v1/actions", params, &actions)
	return actions, err
}

// GetAction возвращает запись по ID.
func (c *Client) GetAction(id int64) (*ActionResponse, error) {
	var action ActionResponse
	err := c.get("/api/v1/actions/"+strconv.FormatInt(id, 10), &action)
	return &action, err
}

// LogAction добавляет запись в лог.
func (c *Client) LogAction(req LogActionRequest) (*ActionResponse, error) {
	var action ActionResponse
	err := c.post("/api/v1/actions", req, &action)
	return &action, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
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

	req, err := http.NewRequest(method, strings.TrimRight(c.baseURL, "/")+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	return resp, nil
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: "HTTP_ERROR", Message: http.StatusText(resp.StatusCode)}
	}

	return &APIError{Status: resp.StatusCode, Code: er.Error.Code, Message: er.Error.Message}
}
