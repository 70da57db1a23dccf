package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const provisioningPath = "/functions/v1/create_user_defaults"

// HTTPProvisioner posts the new account to the create_user_defaults function.
type HTTPProvisioner struct {
	BaseURL string
	Client  *http.Client
}

var _ Provisioner = (*HTTPProvisioner)(nil)

func NewHTTPProvisioner(baseURL string) *HTTPProvisioner {
	return &HTTPProvisioner{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *HTTPProvisioner) Provision(ctx context.Context, accessToken string, user Principal) error {
	body, err := json.Marshal(map[string]interface{}{"user": user})
	if err != nil {
		return fmt.Errorf("marshal provisioning request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+provisioningPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create provisioning request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("provisioning request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provisioning failed: status %d, body: %s", resp.StatusCode, string(raw))
	}
	return nil
}
