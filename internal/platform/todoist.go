package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const (
	todoistRestURL   = "https://api.todoist.com/rest/v2"
	todoistUploadURL = "https://api.todoist.com/sync/v9/uploads/add"
)

// Todoist pushes tasks to the Todoist REST API
type Todoist struct {
	token      string
	projectID  string // optional; empty means the user's inbox
	baseURL    string
	uploadURL  string
	httpClient *http.Client
}

// NewTodoist creates a Todoist connector from an account token and
// platform config (optional "project_id").
func NewTodoist(token string, cfg map[string]string) *Todoist {
	return &Todoist{
		token:     token,
		projectID: cfg["project_id"],
		baseURL:   todoistRestURL,
		uploadURL: todoistUploadURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateTask creates a Todoist task and returns its id
func (t *Todoist) CreateTask(ctx context.Context, data TaskData) (string, error) {
	payload := map[string]any{
		"content":      data.Title,
		"description":  data.Description,
		"due_datetime": data.DueTime,
	}
	if t.projectID != "" {
		payload["project_id"] = t.projectID
	}

	body, err := t.postJSON(ctx, "create task", t.baseURL+"/tasks", payload)
	if err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse todoist response: %w", err)
	}
	return result.ID, nil
}

// AttachFile uploads the file and links it to the task as a comment
func (t *Todoist) AttachFile(ctx context.Context, externalID string, data []byte, filename string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("build upload form: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.uploadURL, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Content-Type", w.FormDataContentType())

	respBody, err := t.do("upload file", req)
	if err != nil {
		return err
	}

	var upload struct {
		FileURL  string `json:"file_url"`
		FileName string `json:"file_name"`
		FileType string `json:"file_type"`
	}
	if err := json.Unmarshal(respBody, &upload); err != nil {
		return fmt.Errorf("parse upload response: %w", err)
	}

	_, err = t.postJSON(ctx, "attach file", t.baseURL+"/comments", map[string]any{
		"task_id": externalID,
		"content": "",
		"attachment": map[string]any{
			"file_url":  upload.FileURL,
			"file_name": upload.FileName,
			"file_type": upload.FileType,
		},
	})
	return err
}

// TaskURL returns the task link shown in user feedback
func (t *Todoist) TaskURL(externalID string) string {
	return "https://todoist.com/showTask?id=" + externalID
}

func (t *Todoist) postJSON(ctx context.Context, op, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Content-Type", "application/json")

	return t.do(op, req)
}

func (t *Todoist) do(op string, req *http.Request) ([]byte, error) {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransport("todoist", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransport("todoist", op, err)
	}

	if resp.StatusCode >= 400 {
		return nil, wrapHTTP("todoist", op, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
