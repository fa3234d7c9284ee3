package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rustyeddy/portmon/alert"
)

// Embed colours by severity.
const (
	colorInfo     = 0x3498DB
	colorWarning  = 0xF1C40F
	colorCritical = 0xE74C3C
)

// Webhook posts alerts as Discord-style embeds. The raw payload rides along
// as the embed fields so generic receivers can parse it too.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Webhook{url: url, client: client}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, a alert.Alert) error {
	p := PayloadOf(a)
	color := colorInfo
	switch a.Severity {
	case alert.Warning:
		color = colorWarning
	case alert.Critical:
		color = colorCritical
	}

	body := map[string]any{
		"embeds": []map[string]any{{
			"title":       fmt.Sprintf("[%s] %s", p.Severity, p.DedupKey),
			"description": p.Message,
			"color":       color,
			"timestamp":   p.Timestamp.Format(time.RFC3339),
			"fields": []map[string]any{
				{"name": "kind", "value": p.Kind, "inline": true},
				{"name": "count", "value": fmt.Sprint(p.Count), "inline": true},
			},
		}},
		"payload": p,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status: %d", resp.StatusCode)
	}
	return nil
}
