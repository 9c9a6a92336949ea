package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	titles []string
}

func (r *recordingSender) Send(ctx context.Context, title, message string) error {
	r.titles = append(r.titles, title)
	return nil
}

func TestNewWithoutTopicIsDisabled(t *testing.T) {
	n := New("", "")
	assert.Nil(t, n)
	assert.NoError(t, n.Send(context.Background(), "title", "message"))
}

func TestSendPostsToTopic(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL+"/", "living-room")
	require.NoError(t, n.Send(context.Background(), "Alert", "convector offline"))
	assert.Equal(t, "living-room", got["topic"])
	assert.Equal(t, "Alert", got["title"])
	assert.Equal(t, "convector offline", got["message"])
}

func TestSendNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := New(srv.URL, "topic").Send(context.Background(), "Alert", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestReachabilityMonitor(t *testing.T) {
	rec := &recordingSender{}
	m := &ReachabilityMonitor{sender: rec, entityID: "climate.tesy_convector", threshold: 3}
	ctx := context.Background()
	fail := errors.New("connection refused")

	m.Observe(ctx, fail)
	m.Observe(ctx, fail)
	assert.Empty(t, rec.titles)

	m.Observe(ctx, fail)
	m.Observe(ctx, fail)
	assert.Equal(t, []string{"Tesy convector unreachable"}, rec.titles)

	m.Observe(ctx, nil)
	m.Observe(ctx, nil)
	assert.Equal(t, []string{"Tesy convector unreachable", "Tesy convector recovered"}, rec.titles)
}

func TestReachabilityMonitorResetsBelowThreshold(t *testing.T) {
	rec := &recordingSender{}
	m := &ReachabilityMonitor{sender: rec, entityID: "climate.tesy_convector", threshold: 2}
	ctx := context.Background()

	m.Observe(ctx, errors.New("timeout"))
	m.Observe(ctx, nil)
	m.Observe(ctx, errors.New("timeout"))
	assert.Empty(t, rec.titles)
}

func TestReachabilityMonitorWithoutNotifier(t *testing.T) {
	m := NewReachabilityMonitor(nil, "climate.tesy_convector", 1)
	assert.NotPanics(t, func() {
		m.Observe(context.Background(), errors.New("timeout"))
		m.Observe(context.Background(), nil)
	})
}
