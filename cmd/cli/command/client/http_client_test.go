package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/cmd/cli/dto"
	"taskhub/internal/reconcile"
)

func TestHTTPClient_FetchUnread(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/notifications", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("isRead"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]reconcile.Item{{
			ID: "n-1", UserID: "user-a", Type: "NEW_COMMENT", Message: "hi",
			TaskTitle: "Fix login", CreatedAt: created,
		}})
	}))
	defer server.Close()

	items, err := NewHTTPClient(server.URL, "tok").FetchUnread(context.Background())

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "n-1", items[0].ID)
	assert.Equal(t, "Fix login", items[0].TaskTitle)
	assert.True(t, items[0].CreatedAt.Equal(created))
}

func TestHTTPClient_FetchAllSendsNoFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		w.Write([]byte("null"))
	}))
	defer server.Close()

	items, err := NewHTTPClient(server.URL+"/", "tok").FetchAll(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestHTTPClient_MarkRead(t *testing.T) {
	var gotPath, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.Write([]byte(`{"id":"n-1","isRead":true}`))
	}))
	defer server.Close()

	err := NewHTTPClient(server.URL, "tok").MarkRead(context.Background(), "n-1")

	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/notifications/n-1/read", gotPath)
}

func TestHTTPClient_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "api message", status: http.StatusNotFound, body: `{"error":"not found"}`, wantErr: "not found"},
		{name: "no body", status: http.StatusInternalServerError, body: "", wantErr: "unexpected status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := NewHTTPClient(server.URL, "tok").MarkRead(context.Background(), "n-1")

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHTTPClient_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, "").FetchUnread(context.Background())

	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestHTTPClient_CreateComment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tasks/task-1/comments", r.URL.Path)
		var req dto.CreateCommentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "looks good", req.Content)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(dto.CreateCommentResponse{
			Comment:       dto.CommentResponse{ID: "c-1", TaskID: "task-1", Content: req.Content},
			Notifications: dto.FanoutSummary{Recipients: 2, Created: 2, Delivered: 1},
		})
	}))
	defer server.Close()

	result, err := NewHTTPClient(server.URL, "tok").CreateComment(context.Background(), "task-1", "looks good")

	require.NoError(t, err)
	assert.Equal(t, "c-1", result.Comment.ID)
	assert.Equal(t, 2, result.Notifications.Created)
	assert.Equal(t, 1, result.Notifications.Delivered)
}

func TestHTTPClient_MarkAllRead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notifications/read-all", r.URL.Path)
		w.Write([]byte(`{"updated":3}`))
	}))
	defer server.Close()

	updated, err := NewHTTPClient(server.URL, "tok").MarkAllRead(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)
}
