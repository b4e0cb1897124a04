package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eleven-am/vision-client/internal/protocol"
)

const maxResponseBytes = 1 << 20

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Start asks the server to open the camera. A nil error with Success false is
// an application-level refusal carrying the server's message.
func (c *Client) Start(ctx context.Context) (*Result, error) {
	return c.control(ctx, "/api/camera/start")
}

func (c *Client) Stop(ctx context.Context) (*Result, error) {
	return c.control(ctx, "/api/camera/stop")
}

func (c *Client) control(ctx context.Context, path string) (*Result, error) {
	var result Result
	if err := c.do(ctx, http.MethodPost, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Info(ctx context.Context) (*Info, error) {
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Data    Info   `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/camera/info", &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrRejected, resp.Message)
	}
	return &resp.Data, nil
}

// DetectionSummary fetches the latest detection results. The objects list is
// normalized the same way as video_frame detection info.
func (c *Client) DetectionSummary(ctx context.Context) (*Summary, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/detection/summary", &raw); err != nil {
		return nil, err
	}

	payload := protocol.DecodePayload(raw)
	success, _ := protocol.Field(payload, "success")
	if ok, _ := success.(bool); !ok {
		msg, _ := protocol.Field(payload, "message")
		return nil, fmt.Errorf("%w: %s", ErrRejected, protocol.Text(msg, protocol.PlaceholderUnknown))
	}

	summary, _ := protocol.Field(payload, "summary")
	return &Summary{
		Summary:   protocol.Text(summary, protocol.PlaceholderNone),
		Detection: protocol.ParseDetectionSummary(payload),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("camera request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("camera api returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
