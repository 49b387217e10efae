package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// LovePDFClient talks to the remote PDF extraction service. The flow is
// token auth, task start, file upload, process, download of the extracted
// text. Used ahead of local extraction when credentials are configured.
type LovePDFClient struct {
	baseURL   string
	publicKey string
	secretKey string
	client    *http.Client
	logger    arbor.ILogger

	mu      sync.Mutex
	token   string
	tokenAt time.Time
}

// tokenTTL is how long an auth token is reused before re-authenticating
const tokenTTL = 90 * time.Minute

// NewLovePDFClient creates a remote extraction client
func NewLovePDFClient(baseURL, publicKey, secretKey string, logger arbor.ILogger) *LovePDFClient {
	return &LovePDFClient{
		baseURL:   baseURL,
		publicKey: publicKey,
		secretKey: secretKey,
		client:    &http.Client{Timeout: 120 * time.Second},
		logger:    logger,
	}
}

// ExtractText uploads the PDF and returns the extracted plain text
func (c *LovePDFClient) ExtractText(ctx context.Context, data []byte, filename string) (string, error) {
	token, err := c.authToken(ctx)
	if err != nil {
		return "", err
	}

	task, server, err := c.startTask(ctx, token)
	if err != nil {
		return "", err
	}

	serverFilename, err := c.upload(ctx, server, token, task, data, filename)
	if err != nil {
		return "", err
	}

	if err := c.process(ctx, server, token, task, serverFilename, filename); err != nil {
		return "", err
	}

	return c.download(ctx, server, token, task)
}

func (c *LovePDFClient) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Since(c.tokenAt) < tokenTTL {
		return c.token, nil
	}

	body, _ := json.Marshal(map[string]string{"public_key": c.publicKey})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth returned status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode auth response: %w", err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("auth returned empty token")
	}

	c.token = result.Token
	c.tokenAt = time.Now()
	return c.token, nil
}

func (c *LovePDFClient) startTask(ctx context.Context, token string) (task, server string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/start/extract", nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create start request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("start request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("start returned status %d", resp.StatusCode)
	}

	var result struct {
		Task   string `json:"task"`
		Server string `json:"server"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", fmt.Errorf("failed to decode start response: %w", err)
	}
	server = result.Server
	if server == "" {
		server = c.baseURL
	} else {
		server = "https://" + server + "/v1"
	}
	return result.Task, server, nil
}

func (c *LovePDFClient) upload(ctx context.Context, server, token, task string, data []byte, filename string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.WriteField("task", task)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write upload body: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload returned status %d", resp.StatusCode)
	}

	var result struct {
		ServerFilename string `json:"server_filename"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	return result.ServerFilename, nil
}

func (c *LovePDFClient) process(ctx context.Context, server, token, task, serverFilename, filename string) error {
	body, _ := json.Marshal(map[string]interface{}{
		"task": task,
		"tool": "extract",
		"files": []map[string]string{
			{"server_filename": serverFilename, "filename": filename},
		},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/process", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create process request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("process request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("process returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *LovePDFClient) download(ctx context.Context, server, token, task string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server+"/download/"+task, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read download body: %w", err)
	}
	return string(data), nil
}
