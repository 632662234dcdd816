// Package notify delivers activity events to configured webhooks.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"honourus/internal/config"
	"honourus/internal/domain"
	"honourus/internal/repo"
)

const (
	defaultInterval = 2 * time.Second
	defaultTimeout  = 5 * time.Second
	defaultBatch    = 100
)

// Notifier polls the events table and posts new events to each webhook.
// Every webhook keeps its own cursor, starting at the newest event seen when
// the notifier first polls it.
type Notifier struct {
	Repo     repo.Repo
	Webhooks []config.WebhookConfig
	Interval time.Duration
	Client   *http.Client

	mu      sync.Mutex
	cursors map[int]int64
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(r repo.Repo, hooks []config.WebhookConfig) *Notifier {
	return &Notifier{
		Repo:     r,
		Webhooks: hooks,
		Interval: defaultInterval,
		Client:   &http.Client{Timeout: defaultTimeout},
		cursors:  make(map[int]int64),
	}
}

// Start runs the poll loop until Stop. It is a no-op without webhooks.
func (n *Notifier) Start(ctx context.Context) {
	if len(n.Webhooks) == 0 {
		return
	}
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	go n.run(ctx)
	log.WithField("webhooks", len(n.Webhooks)).Info("notifier started")
}

// Stop cancels the poll loop and waits for it to exit.
func (n *Notifier) Stop() {
	if n.cancel == nil {
		return
	}
	n.cancel()
	<-n.done
	log.Info("notifier stopped")
}

func (n *Notifier) run(ctx context.Context) {
	defer close(n.done)
	interval := n.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n.DispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchAll runs one delivery pass over every enabled webhook.
func (n *Notifier) DispatchAll(ctx context.Context) {
	for i, hook := range n.Webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		n.dispatch(ctx, i, hook)
	}
}

func (n *Notifier) dispatch(ctx context.Context, idx int, hook config.WebhookConfig) {
	cursor := n.cursorFor(ctx, idx)
	evts, err := n.Repo.EventsAfter(ctx, cursor, defaultBatch)
	if err != nil {
		log.WithError(err).Warn("notify: fetch events failed")
		return
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range evts {
		if !filter.match(evt.Type) {
			n.setCursor(idx, evt.ID)
			continue
		}
		if err := n.post(ctx, hook, evt); err != nil {
			log.WithError(err).WithFields(log.Fields{"url": hook.URL, "event_id": evt.ID}).Warn("notify: delivery failed")
			return
		}
		n.setCursor(idx, evt.ID)
	}
}

func (n *Notifier) cursorFor(ctx context.Context, idx int) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cursors == nil {
		n.cursors = make(map[int]int64)
	}
	if cur, ok := n.cursors[idx]; ok {
		return cur
	}
	cur, err := n.Repo.LatestEventID(ctx)
	if err != nil {
		log.WithError(err).Warn("notify: init cursor failed")
		cur = 0
	}
	n.cursors[idx] = cur
	return cur
}

func (n *Notifier) setCursor(idx int, value int64) {
	n.mu.Lock()
	n.cursors[idx] = value
	n.mu.Unlock()
}

// Delivery is the JSON body posted to a webhook.
type Delivery struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (n *Notifier) post(ctx context.Context, hook config.WebhookConfig, evt domain.Event) error {
	payload := json.RawMessage("{}")
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	data, err := json.Marshal(Delivery{
		ID:         evt.ID,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if hook.TimeoutSeconds > 0 {
		if timeout := time.Duration(hook.TimeoutSeconds) * time.Second; timeout != client.Timeout {
			c := *client
			c.Timeout = timeout
			client = &c
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Honourus-Event", evt.Type)
	req.Header.Set("X-Honourus-Delivery", strconv.FormatInt(evt.ID, 10))
	if secret := strings.TrimSpace(hook.Secret); secret != "" {
		req.Header.Set("X-Honourus-Signature", "sha256="+Sign(secret, data))
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(types []string) eventFilter {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		if key := strings.TrimSpace(t); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evtType string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evtType]
	return ok
}
