package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rustyeddy/portmon/alert"
)

const telegramAPI = "https://api.telegram.org"

// Telegram sends alerts through the Bot API sendMessage call.
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

func NewTelegram(token, chatID string, client *http.Client) *Telegram {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Telegram{token: token, chatID: chatID, baseURL: telegramAPI, client: client}
}

// WithBaseURL points the sink at another API host.
func (t *Telegram) WithBaseURL(u string) *Telegram {
	t.baseURL = strings.TrimRight(u, "/")
	return t
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, a alert.Alert) error {
	text := fmt.Sprintf("*%s* `%s`\n%s", strings.ToUpper(a.Severity.String()), a.Key, a.Message)
	if a.Count > 1 {
		text += fmt.Sprintf("\n_seen %d times_", a.Count)
	}
	data, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("telegram returned status: %d", resp.StatusCode)
	}
	return nil
}
