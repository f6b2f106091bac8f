package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultLineEndpoint = "https://api.line.me"

var ErrLineTokenMissing = errors.New("line channel access token is missing")

// LineClient pushes messages through the LINE Messaging API.
type LineClient struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func NewLineClient(endpoint, token string, timeout time.Duration) *LineClient {
	if endpoint == "" {
		endpoint = DefaultLineEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LineClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type linePushRequest struct {
	To       string `json:"to"`
	Messages []any  `json:"messages"`
}

type lineText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type linePostback struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Data  string `json:"data"`
}

type lineConfirm struct {
	Type    string         `json:"type"`
	Text    string         `json:"text"`
	Actions []linePostback `json:"actions"`
}

type lineTemplate struct {
	Type     string      `json:"type"`
	AltText  string      `json:"altText"`
	Template lineConfirm `json:"template"`
}

func toLineMessage(msg Message) any {
	if len(msg.Actions) == 0 {
		return lineText{Type: "text", Text: msg.Text}
	}
	actions := make([]linePostback, 0, len(msg.Actions))
	for _, a := range msg.Actions {
		actions = append(actions, linePostback{Type: "postback", Label: a.Label, Data: a.Data})
	}
	alt := msg.AltText
	if alt == "" {
		alt = msg.Text
	}
	return lineTemplate{
		Type:     "template",
		AltText:  alt,
		Template: lineConfirm{Type: "confirm", Text: msg.Text, Actions: actions},
	}
}

func (c *LineClient) Push(ctx context.Context, to string, msg Message) error {
	if c.token == "" {
		return ErrLineTokenMissing
	}

	body, err := json.Marshal(linePushRequest{To: to, Messages: []any{toLineMessage(msg)}})
	if err != nil {
		return fmt.Errorf("marshal line push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v2/bot/message/push", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build line push: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("line push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("line api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
