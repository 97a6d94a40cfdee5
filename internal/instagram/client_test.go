package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(serverURL string) *Client {
	c := NewClient(serverURL, "test-token")
	c.backoffBase = time.Millisecond
	return c
}

func TestSendText(t *testing.T) {
	t.Run("returns platform message id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/me/messages", r.URL.Path)
			assert.Equal(t, "test-token", r.URL.Query().Get("access_token"))
			w.Write([]byte(`{"recipient_id":"123","message_id":"mid.abc"}`))
		}))
		defer server.Close()

		mid, err := testClient(server.URL).SendText(context.Background(), "123", "hello")
		require.NoError(t, err)
		assert.Equal(t, "mid.abc", mid)
	})

	t.Run("retries on 429 then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{"message_id":"mid.retry"}`))
		}))
		defer server.Close()

		mid, err := testClient(server.URL).SendText(context.Background(), "123", "hello")
		require.NoError(t, err)
		assert.Equal(t, "mid.retry", mid)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("retries on 500 until attempts exhausted", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"boom","code":1}}`))
		}))
		defer server.Close()

		_, err := testClient(server.URL).SendText(context.Background(), "123", "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retries exhausted")
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"invalid recipient","code":100}}`))
		}))
		defer server.Close()

		_, err := testClient(server.URL).SendText(context.Background(), "123", "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid recipient")
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestSendReaction(t *testing.T) {
	t.Run("rejects unsupported reaction", func(t *testing.T) {
		err := testClient("http://unused").SendReaction(context.Background(), "123", "mid.1", "angry")
		require.Error(t, err)
	})

	t.Run("sends react sender action", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		err := testClient(server.URL).SendReaction(context.Background(), "123", "mid.1", ReactionLove)
		require.NoError(t, err)
	})
}

func TestGetProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/17841400000000000", r.URL.Path)
		assert.Equal(t, "name,username", r.URL.Query().Get("fields"))
		w.Write([]byte(`{"name":"Jane","username":"jane_doe"}`))
	}))
	defer server.Close()

	profile, err := testClient(server.URL).GetProfile(context.Background(), "17841400000000000")
	require.NoError(t, err)
	assert.Equal(t, "jane_doe", profile.Username)
	assert.Equal(t, "Jane", profile.Name)
}
