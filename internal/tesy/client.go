package tesy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultTimeout = 10 * time.Second

// Status is the raw status document returned by the convector. Its shape is
// owned by the device firmware, so it is kept as an untyped mapping.
type Status map[string]any

// Client talks to a single convector over its local HTTP API.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient returns a client for the convector at address ("192.168.1.20" or
// "http://192.168.1.20:80"). A zero timeout uses the default of 10s.
func NewClient(address, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := strings.TrimRight(address, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    base,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Model() string {
	return c.model
}

// Status fetches the full device status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var status Status
	if err := c.call(ctx, "getStatus", "", &status); err != nil {
		return nil, err
	}
	return status, nil
}

func (c *Client) TurnOn(ctx context.Context) error {
	return c.call(ctx, "onOff", "on", nil)
}

func (c *Client) TurnOff(ctx context.Context) error {
	return c.call(ctx, "onOff", "off", nil)
}

// SetMode switches the heating program, e.g. "heating" or "program".
func (c *Client) SetMode(ctx context.Context, name string) error {
	return c.call(ctx, "setMode", name, nil)
}

func (c *Client) SetTemperature(ctx context.Context, value float64) error {
	return c.call(ctx, "setTemp", strconv.FormatFloat(value, 'f', -1, 64), nil)
}

func (c *Client) SetOpenedWindow(ctx context.Context, status bool) error {
	set := "off"
	if status {
		set = "on"
	}
	return c.call(ctx, "setOpenedWindow", set, nil)
}

func (c *Client) call(ctx context.Context, name, set string, out any) error {
	q := url.Values{}
	q.Set("name", name)
	if set != "" {
		q.Set("set", set)
	}
	endpoint := fmt.Sprintf("%s/api?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")
	ua := "tesy-convector"
	if c.model != "" {
		ua += " (" + c.model + ")"
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s failed with status code: %d", name, resp.StatusCode)
	}

	log.Debug().
		Str("command", name).
		Str("set", set).
		Int("status", resp.StatusCode).
		Msg("Convector request completed")

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", name, err)
	}
	return nil
}
