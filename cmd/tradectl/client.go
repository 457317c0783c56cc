package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// adminClient is a thin HTTP client for the momentum-engine admin API
// (package api), following the same request/response shapes cmd/tradectl
// presents to the operator. It logs in lazily on first use and caches the
// bearer token for the process lifetime.
type adminClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	token   string
}

func newAdminClient() *adminClient {
	baseURL := os.Getenv("ADMIN_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8766"
	}
	return &adminClient{
		baseURL: baseURL,
		apiKey:  os.Getenv("ADMIN_API_KEY"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *adminClient) login() error {
	if c.apiKey == "" {
		return fmt.Errorf("ADMIN_API_KEY is not set")
	}
	body, _ := json.Marshal(map[string]string{"api_key": c.apiKey})
	resp, err := c.http.Post(c.baseURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: %s", out.Error)
	}
	c.token = out.Token
	return nil
}

// do issues an authenticated request, logging in first if needed. totpCode
// is attached as X-TOTP-Code when non-empty (live-mode manual orders).
func (c *adminClient) do(method, path string, body interface{}, totpCode string) (*http.Response, error) {
	if c.token == "" {
		if err := c.login(); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if totpCode != "" {
		req.Header.Set("X-TOTP-Code", totpCode)
	}

	return c.http.Do(req)
}

// getJSON/postJSON decode a successful JSON response into out, or return
// the server's {"error": ...} message as a Go error.
func (c *adminClient) getJSON(path string, out interface{}) error {
	resp, err := c.do(http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return decodeOrError(resp, out)
}

func (c *adminClient) postJSON(path string, body interface{}, totpCode string, out interface{}) error {
	resp, err := c.do(http.MethodPost, path, body, totpCode)
	if err != nil {
		return err
	}
	return decodeOrError(resp, out)
}

func (c *adminClient) liveQuery(path string, live bool) string {
	if !live {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + url.Values{"live": {"true"}}.Encode()
}

func decodeOrError(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &errBody)
		if errBody.Error != "" {
			return fmt.Errorf("%s", errBody.Error)
		}
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
