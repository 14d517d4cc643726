package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fndlabs/foundation/internal/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUsers(t *testing.T) {
	var gotAuth, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("apikey")
		assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)

		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"users":[{"id":"u-%s","email":"u%s@x.com","user_metadata":{"full_name":"User %s"}}]}`, page, page, page)
	}))
	defer srv.Close()

	client := NewClient(config.Supabase{URL: srv.URL, SecretKey: "sk-test"})
	users, err := client.ListUsers(context.Background(), 2, 100)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u-2", users[0].ID)
	assert.Equal(t, "User 2", users[0].FullName())
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "sk-test", gotAPIKey)
}

func TestListUsersErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "bad key"})
	}))
	defer srv.Close()

	client := NewClient(config.Supabase{URL: srv.URL, SecretKey: "sk-bad"})
	_, err := client.ListUsers(context.Background(), 1, 100)
	assert.Error(t, err)

	unconfigured := NewClient(config.Supabase{})
	_, err = unconfigured.ListUsers(context.Background(), 1, 100)
	assert.Error(t, err)
}
