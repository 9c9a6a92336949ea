package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultServer = "https://ntfy.sh"

// Notifier posts messages to an ntfy topic.
type Notifier struct {
	client *http.Client
	server string
	topic  string
}

// New returns nil when topic is empty; a nil Notifier drops every message.
func New(server, topic string) *Notifier {
	if topic == "" {
		log.Warn().Msg("Ntfy topic not configured - notifications disabled")
		return nil
	}
	if server == "" {
		server = DefaultServer
	}
	log.Info().Str("server", server).Str("topic", topic).Msg("Ntfy notifications initialized")
	return &Notifier{
		client: &http.Client{Timeout: 10 * time.Second},
		server: strings.TrimRight(server, "/"),
		topic:  topic,
	}
}

func (n *Notifier) Send(ctx context.Context, title, message string) error {
	if n == nil {
		return nil
	}

	jsonData, err := json.Marshal(map[string]string{
		"topic":   n.topic,
		"title":   title,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.server, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned non-success status: %d", resp.StatusCode)
	}

	log.Debug().Str("title", title).Int("status", resp.StatusCode).Msg("Notification sent successfully")
	return nil
}

type sender interface {
	Send(ctx context.Context, title, message string) error
}

// ReachabilityMonitor raises one alert once a convector has failed
// threshold refreshes in a row and one more when it answers again.
type ReachabilityMonitor struct {
	sender    sender
	entityID  string
	threshold int

	mu       sync.Mutex
	failures int
	alerted  bool
}

func NewReachabilityMonitor(n *Notifier, entityID string, threshold int) *ReachabilityMonitor {
	if threshold <= 0 {
		threshold = 1
	}
	m := &ReachabilityMonitor{entityID: entityID, threshold: threshold}
	if n != nil {
		m.sender = n
	}
	return m
}

// Observe records the outcome of one refresh.
func (m *ReachabilityMonitor) Observe(ctx context.Context, err error) {
	m.mu.Lock()
	var title, message string
	if err != nil {
		m.failures++
		if m.failures >= m.threshold && !m.alerted {
			m.alerted = true
			title = "Tesy convector unreachable"
			message = fmt.Sprintf("%s failed %d refreshes in a row: %v", m.entityID, m.failures, err)
		}
	} else {
		if m.alerted {
			title = "Tesy convector recovered"
			message = fmt.Sprintf("%s is responding again after %d failed refreshes", m.entityID, m.failures)
		}
		m.failures = 0
		m.alerted = false
	}
	m.mu.Unlock()

	if title == "" || m.sender == nil {
		return
	}
	if sendErr := m.sender.Send(ctx, title, message); sendErr != nil {
		log.Warn().Err(sendErr).Str("entity_id", m.entityID).Msg("Failed to send notification")
	}
}
