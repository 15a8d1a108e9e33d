package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const trelloAPIURL = "https://api.trello.com/1"

// Trello pushes tasks as cards onto a configured Trello list.
// Credentials are stored as "key:token"; config carries "list_id".
type Trello struct {
	key        string
	token      string
	listID     string
	baseURL    string
	httpClient *http.Client
}

// NewTrello creates a Trello connector
func NewTrello(credentials string, cfg map[string]string) *Trello {
	key, token, _ := strings.Cut(credentials, ":")
	return &Trello{
		key:     key,
		token:   token,
		listID:  cfg["list_id"],
		baseURL: trelloAPIURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateTask creates a card and returns its id
func (t *Trello) CreateTask(ctx context.Context, data TaskData) (string, error) {
	if t.listID == "" {
		return "", &Error{
			Kind:     KindConfigFailure,
			Platform: "trello",
			Op:       "create task",
			Err:      fmt.Errorf("no list_id configured"),
		}
	}

	params := url.Values{}
	params.Set("idList", t.listID)
	params.Set("name", data.Title)
	params.Set("desc", data.Description)
	params.Set("due", data.DueTime)

	body, err := t.post(ctx, "create task", "/cards", params, nil, "")
	if err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse trello response: %w", err)
	}
	return result.ID, nil
}

// AttachFile uploads the file as a card attachment
func (t *Trello) AttachFile(ctx context.Context, externalID string, data []byte, filename string) error {
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

	_, err = t.post(ctx, "attach file", "/cards/"+externalID+"/attachments", url.Values{}, &buf, w.FormDataContentType())
	return err
}

// TaskURL returns the card link shown in user feedback
func (t *Trello) TaskURL(externalID string) string {
	return "https://trello.com/c/" + externalID
}

func (t *Trello) post(ctx context.Context, op, path string, params url.Values, body io.Reader, contentType string) ([]byte, error) {
	params.Set("key", t.key)
	params.Set("token", t.token)

	req, err := http.NewRequestWithContext(ctx, "POST", t.baseURL+path+"?"+params.Encode(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransport("trello", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransport("trello", op, err)
	}

	if resp.StatusCode >= 400 {
		return nil, wrapHTTP("trello", op, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
