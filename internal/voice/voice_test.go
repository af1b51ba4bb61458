package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/rivertownball/riverchat/internal/log"
)

func TestClientPlaceCall(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var got CallRequest
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/calls", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "success", "call_id": "c-123"})
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "sk-test", time.Second, log.NewNop())
		require.NoError(t, err)

		err = c.PlaceCall(context.Background(), CallRequest{
			PhoneNumber: "+15551234567",
			Task:        "say hello",
			Voice:       "maya",
			MaxDuration: 12,
		})
		require.NoError(t, err)
		assert.Equal(t, "sk-test", gotAuth)
		assert.Equal(t, "+15551234567", got.PhoneNumber)
		assert.Equal(t, 12, got.MaxDuration)
	})

	t.Run("non-success status in body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "invalid number"})
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "sk-test", time.Second, log.NewNop())
		require.NoError(t, err)

		err = c.PlaceCall(context.Background(), CallRequest{PhoneNumber: "+15551234567"})
		assert.True(t, errors.Is(err, ErrCallRejected))
	})

	t.Run("HTTP error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "sk-bad", time.Second, log.NewNop())
		require.NoError(t, err)

		err = c.PlaceCall(context.Background(), CallRequest{PhoneNumber: "+15551234567"})
		assert.True(t, errors.Is(err, ErrCallRejected))
	})

	t.Run("missing configuration", func(t *testing.T) {
		_, err := NewClient("", "key", time.Second, nil)
		assert.Error(t, err)
		_, err = NewClient("https://example.com", "", time.Second, nil)
		assert.Error(t, err)
	})
}

// fakeCalls records placements and optionally fails them.
type fakeCalls struct {
	requests []CallRequest
	err      error
}

func (f *fakeCalls) PlaceCall(_ context.Context, req CallRequest) error {
	f.requests = append(f.requests, req)
	return f.err
}

func newTestEscalator(calls CallPlacer) *Escalator {
	return NewEscalator(Config{
		Calls:           calls,
		Logger:          log.NewNop(),
		FallbackNumber:  "(555) 555-0199",
		VoiceID:         "maya",
		MaxCallDuration: 12,
		CallTimeout:     time.Second,
		Limiter:         rate.NewLimiter(rate.Inf, 1),
	})
}

func TestEscalatorTriggerTurn(t *testing.T) {
	calls := &fakeCalls{}
	e := newTestEscalator(calls)

	res := e.Handle(context.Background(), "I want to talk to someone")
	assert.True(t, res.AskedNumber)
	assert.False(t, res.CallPlaced)
	assert.Contains(t, res.Reply, "best phone number")

	// The trigger turn never places a call.
	assert.Empty(t, calls.requests)
}

func TestEscalatorNumberTurn(t *testing.T) {
	t.Run("valid number places exactly one call", func(t *testing.T) {
		calls := &fakeCalls{}
		e := newTestEscalator(calls)

		res := e.Handle(context.Background(), "sure, it's (555) 123-4567")
		assert.True(t, res.CallPlaced)
		assert.Equal(t, "+15551234567", res.Phone)
		assert.Contains(t, res.Reply, "(555) 123-4567")

		require.Len(t, calls.requests, 1)
		req := calls.requests[0]
		assert.Equal(t, "+15551234567", req.PhoneNumber)
		assert.Equal(t, "maya", req.Voice)
		assert.Equal(t, 12, req.MaxDuration)
		assert.Contains(t, req.Task, "Rivertown Ball Company")
	})

	t.Run("unparseable digit sequence re-prompts", func(t *testing.T) {
		calls := &fakeCalls{}
		e := newTestEscalator(calls)

		res := e.Handle(context.Background(), "555512345678") // 12 digits
		assert.True(t, res.AskedNumber)
		assert.False(t, res.CallPlaced)
		assert.Empty(t, calls.requests)
	})

	t.Run("placement failure degrades to fallback number", func(t *testing.T) {
		calls := &fakeCalls{err: errors.New("platform down")}
		e := newTestEscalator(calls)

		res := e.Handle(context.Background(), "5551234567")
		assert.False(t, res.CallPlaced)
		assert.Contains(t, res.Reply, "(555) 555-0199")
	})

	t.Run("rate limit degrades to fallback number", func(t *testing.T) {
		calls := &fakeCalls{}
		e := NewEscalator(Config{
			Calls:          calls,
			Logger:         log.NewNop(),
			FallbackNumber: "(555) 555-0199",
			CallTimeout:    time.Second,
			Limiter:        rate.NewLimiter(rate.Every(time.Hour), 1),
		})

		first := e.Handle(context.Background(), "5551234567")
		assert.True(t, first.CallPlaced)

		second := e.Handle(context.Background(), "5551234567")
		assert.False(t, second.CallPlaced)
		assert.Contains(t, second.Reply, "(555) 555-0199")
		assert.Len(t, calls.requests, 1)
	})
}

// TestEscalatorNoMatch covers the defensive branch: no keyword and not
// digit-dominant returns an empty result so the router can fall through.
func TestEscalatorNoMatch(t *testing.T) {
	e := newTestEscalator(&fakeCalls{})

	res := e.Handle(context.Background(), "actually, what woods do you use?")
	assert.Empty(t, res.Reply)
	assert.False(t, res.AskedNumber)
	assert.False(t, res.CallPlaced)
}

func TestIsTrigger(t *testing.T) {
	assert.True(t, IsTrigger("I'd like to speak to a human please"))
	assert.True(t, IsTrigger("Can CUSTOMER SERVICE call me?"))
	assert.True(t, IsTrigger("get me a representative"))
	assert.False(t, IsTrigger("how are your balls made?"))
	assert.False(t, IsTrigger(""))
}

func TestFormatPhone(t *testing.T) {
	assert.Equal(t, "(555) 123-4567", FormatPhone("+15551234567"))
	// Anything unexpected passes through untouched.
	assert.Equal(t, "+4412345", FormatPhone("+4412345"))
}
