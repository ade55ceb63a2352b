// Package evolution implements the LinkProvider port against an
// Evolution-style WhatsApp gateway. The gateway keys every operation by the
// instance name.
package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driven"
)

// Ensure Client implements LinkProvider
var _ driven.LinkProvider = (*Client)(nil)

// Client talks to the gateway over HTTP. Create and QR-refresh failures are
// hard errors; profile and status probes swallow transport problems and
// report "not linked" / "indeterminate" instead, so a flaky gateway never
// poisons reconciliation.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Config holds gateway connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // Per-request timeout (default: 30s)
}

// NewClient creates a new gateway client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
	}
}

type createRequest struct {
	ConnectionName string `json:"connectionName"`
}

type createResponse struct {
	InstanceID string `json:"instanceId"`
	Base64     string `json:"base64"`
	Code       string `json:"code"`
}

// CreateInstance registers a new instance. The gateway answers with the
// initial QR payload.
func (c *Client) CreateInstance(ctx context.Context, name string) (*driven.CreateInstanceResult, error) {
	resp, err := c.post(ctx, "/instance/create", createRequest{ConnectionName: name})
	if err != nil {
		return nil, &domain.RemoteError{Op: "create", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, remoteError("create", resp)
	}

	var body createResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &domain.RemoteError{Op: "create", Err: fmt.Errorf("decode response: %w", err)}
	}

	return &driven.CreateInstanceResult{
		InstanceID: body.InstanceID,
		QRImage:    body.Base64,
		QRCode:     body.Code,
	}, nil
}

type qrResponse struct {
	QRCode string `json:"qrCode"`
	Base64 string `json:"base64"`
	Code   string `json:"code"`
}

// FetchQR fetches a fresh QR payload for an existing instance. The gateway
// answers either `{qrCode}` or `{base64, code}` depending on its version.
func (c *Client) FetchQR(ctx context.Context, name string) (*driven.QRPayload, error) {
	resp, err := c.get(ctx, "/instance/connect", name)
	if err != nil {
		return nil, &domain.RemoteError{Op: "qr", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, remoteError("qr", resp)
	}

	var body qrResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &domain.RemoteError{Op: "qr", Err: fmt.Errorf("decode response: %w", err)}
	}

	image := body.Base64
	if image == "" {
		image = body.QRCode
	}
	if image == "" {
		return nil, &domain.RemoteError{Op: "qr", Err: fmt.Errorf("empty qr payload")}
	}

	return &driven.QRPayload{Image: image, Code: body.Code}, nil
}

type profileResponse struct {
	ProfileName string `json:"profilename"`
	Contact     string `json:"contato"`
	AvatarURL   string `json:"fotodoperfil"`
}

// FetchProfile probes for the linked device profile. Transport errors and
// non-2xx answers mean "not linked yet", never an error.
func (c *Client) FetchProfile(ctx context.Context, name string) (*domain.Profile, error) {
	resp, err := c.get(ctx, "/instance/fetchProfile", name)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	var body profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, nil
	}

	return &domain.Profile{
		DisplayName: body.ProfileName,
		Contact:     body.Contact,
		AvatarURL:   body.AvatarURL,
	}, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

// ProbeStatus checks the coarse connection status. The gateway answers either
// `{status}` JSON or a bare text body; anything unclassifiable is
// indeterminate rather than an error.
func (c *Client) ProbeStatus(ctx context.Context, name string) (domain.ProbeOutcome, error) {
	indeterminate := domain.ProbeOutcome{State: domain.ProbeIndeterminate}

	resp, err := c.get(ctx, "/instance/connectionState", name)
	if err != nil {
		return indeterminate, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return indeterminate, nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return indeterminate, nil
	}

	token := ""
	var body statusResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Status != "" {
		token = body.Status
	} else {
		token = string(raw)
	}

	outcome := domain.ProbeOutcome{State: domain.ParseProbeStatus(token)}

	// Some gateway versions piggyback the profile on the status answer
	var profile profileResponse
	if err := json.Unmarshal(raw, &profile); err == nil && profile.ProfileName != "" {
		outcome.Profile = &domain.Profile{
			DisplayName: profile.ProfileName,
			Contact:     profile.Contact,
			AvatarURL:   profile.AvatarURL,
		}
	}

	return outcome, nil
}

type instanceRequest struct {
	InstanceName string `json:"instanceName"`
}

// Disconnect unlinks the device. The caller treats failures as best-effort.
func (c *Client) Disconnect(ctx context.Context, name string) error {
	resp, err := c.post(ctx, "/instance/logout", instanceRequest{InstanceName: name})
	if err != nil {
		return &domain.RemoteError{Op: "disconnect", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return remoteError("disconnect", resp)
	}
	return nil
}

// Remove deletes the instance on the gateway. Best-effort, like Disconnect.
func (c *Client) Remove(ctx context.Context, name string) error {
	resp, err := c.post(ctx, "/instance/delete", instanceRequest{InstanceName: name})
	if err != nil {
		return &domain.RemoteError{Op: "delete", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return remoteError("delete", resp)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	return c.httpClient.Do(req)
}

func (c *Client) get(ctx context.Context, path, name string) (*http.Response, error) {
	u := c.baseURL + path + "?connectionName=" + url.QueryEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	return c.httpClient.Do(req)
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
}

func remoteError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &domain.RemoteError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("%s", strings.TrimSpace(string(body))),
	}
}
