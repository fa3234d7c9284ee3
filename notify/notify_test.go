package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/portmon/alert"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

func sample() alert.Alert {
	a := alert.New(alert.KindRisk, alert.Critical, "AAPL", "concentration", "AAPL weight 22% exceeds 15%", t0)
	a.Count = 2
	return a
}

type flakySink struct {
	mu    sync.Mutex
	fails int
	calls int
	done  chan struct{}
}

func (f *flakySink) Name() string { return "flaky" }

func (f *flakySink) Send(context.Context, alert.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fails {
		return errors.New("unavailable")
	}
	close(f.done)
	return nil
}

func TestQueueRetriesSink(t *testing.T) {
	t.Parallel()

	sink := &flakySink{fails: 2, done: make(chan struct{})}
	q := NewQueue(QueueConfig{Capacity: 1, Attempts: 3, RetryDelay: time.Millisecond}, nil, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	require.NoError(t, q.Notify(ctx, sample()))
	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("alert not delivered")
	}

	q.Close()
	assert.Eventually(t, func() bool {
		d, f := q.Stats()
		return d == 1 && f == 0
	}, time.Second, 5*time.Millisecond)
}

func TestQueueNeverBlocks(t *testing.T) {
	t.Parallel()

	q := NewQueue(QueueConfig{Capacity: 1}, nil)
	require.NoError(t, q.Notify(context.Background(), sample()))
	assert.ErrorIs(t, q.Notify(context.Background(), sample()), ErrQueueFull)

	q.Close()
	q.Close()
	assert.ErrorIs(t, q.Notify(context.Background(), sample()), ErrQueueClosed)
}

func TestQueueCloseRacesNotify(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		q := NewQueue(QueueConfig{Capacity: 4}, nil)
		go q.Run(context.Background())

		start := make(chan struct{})
		var wg sync.WaitGroup
		for n := 0; n < 8; n++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for k := 0; k < 20; k++ {
					err := q.Notify(context.Background(), sample())
					if err != nil && !errors.Is(err, ErrQueueFull) && !errors.Is(err, ErrQueueClosed) {
						t.Errorf("unexpected error: %v", err)
					}
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			q.Close()
		}()

		close(start)
		wg.Wait()
		assert.ErrorIs(t, q.Notify(context.Background(), sample()), ErrQueueClosed)
	}
}

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	s := NewLogSink(logrus.NewEntry(logger))

	require.NoError(t, s.Send(context.Background(), sample()))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "risk/AAPL/concentration", hook.LastEntry().Data["dedup_key"])

	w := sample()
	w.Severity = alert.Warning
	require.NoError(t, s.Send(context.Background(), w))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestWebhookPostsPayload(t *testing.T) {
	t.Parallel()

	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhook(srv.URL, srv.Client()).Send(context.Background(), sample()))

	var p Payload
	require.NoError(t, json.Unmarshal(got["payload"], &p))
	assert.Equal(t, "risk", p.Kind)
	assert.Equal(t, "critical", p.Severity)
	assert.Equal(t, "risk/AAPL/concentration", p.DedupKey)
	assert.Equal(t, "AAPL", p.Instrument)
	assert.True(t, t0.Equal(p.Timestamp))
	assert.Contains(t, string(got["embeds"]), "AAPL weight 22%")
}

func TestWebhookErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, nil).Send(context.Background(), sample())
	assert.ErrorContains(t, err, "429")
}

func TestTelegramSendMessage(t *testing.T) {
	t.Parallel()

	var (
		path string
		body map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "1234", srv.Client()).WithBaseURL(srv.URL + "/")
	require.NoError(t, tg.Send(context.Background(), sample()))

	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "1234", body["chat_id"])
	assert.Equal(t, "Markdown", body["parse_mode"])
	assert.True(t, strings.HasPrefix(body["text"], "*CRITICAL*"))
	assert.Contains(t, body["text"], "seen 2 times")
}
