package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rashomon-gh/proton-drive-sync/internal/syncerr"
)

func TestRefreshSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/core/v4/auth/refresh", r.URL.Path)
		require.Equal(t, "Bearer old-access", r.Header.Get("Authorization"))
		require.Equal(t, "uid1", r.Header.Get("x-pm-uid"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh_token", body["GrantType"])
		assert.Equal(t, "old-refresh", body["RefreshToken"])

		json.NewEncoder(w).Encode(map[string]any{
			"Code":         1000,
			"AccessToken":  "new-access",
			"RefreshToken": "new-refresh",
			"ExpiresIn":    3600,
		})
	}))
	defer srv.Close()

	keyPassword := "kp"
	mgr := NewManagerWithAPIBase(srv.URL)
	session, err := mgr.RefreshSession(context.Background(), Session{
		UID:          "uid1",
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		KeyPassword:  &keyPassword,
	})
	require.NoError(t, err)

	assert.Equal(t, "uid1", session.UID)
	assert.Equal(t, "new-access", session.AccessToken)
	assert.Equal(t, "new-refresh", session.RefreshToken)
	require.NotNil(t, session.KeyPassword, "opaque key material survives refresh")
	assert.Equal(t, "kp", *session.KeyPassword)
}

func TestRefreshSessionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"Code": 10013})
	}))
	defer srv.Close()

	mgr := NewManagerWithAPIBase(srv.URL)
	_, err := mgr.RefreshSession(context.Background(), Session{UID: "u", RefreshToken: "r"})
	assert.True(t, errors.Is(err, syncerr.ErrAuth))
	assert.Contains(t, err.Error(), "10013")
}

func TestRefreshSessionHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	mgr := NewManagerWithAPIBase(srv.URL)
	_, err := mgr.RefreshSession(context.Background(), Session{UID: "u", RefreshToken: "r"})
	assert.True(t, errors.Is(err, syncerr.ErrAuth))
}

func TestForkSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/core/v4/auth/sessions/fork", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"Code":         1000,
			"AccessToken":  "child-access",
			"RefreshToken": "child-refresh",
			"UID":          "child-uid",
		})
	}))
	defer srv.Close()

	mgr := NewManagerWithAPIBase(srv.URL)
	child, err := mgr.ForkSession(context.Background(), Session{UID: "parent", AccessToken: "a"})
	require.NoError(t, err)
	assert.Equal(t, "child-uid", child.UID)
	assert.Equal(t, "child-access", child.AccessToken)
}

func TestGetPrimaryKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/core/v4/keys", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"Code": 1000,
			"Keys": []map[string]any{
				{"ID": "k2", "Primary": 0, "PrivateKey": "secondary"},
				{"ID": "k1", "Primary": 1, "PrivateKey": "primary-armored"},
			},
		})
	}))
	defer srv.Close()

	mgr := NewManagerWithAPIBase(srv.URL)
	key, err := mgr.GetPrimaryKey(context.Background(), Session{UID: "u", AccessToken: "a"})
	require.NoError(t, err)
	assert.Equal(t, "primary-armored", key)
}

func TestSessionJSONShape(t *testing.T) {
	// The keyring value is the JSON of the Session record; the field
	// names are part of the on-disk contract.
	session := Session{UID: "u1", AccessToken: "a1", RefreshToken: "r1"}
	data, err := json.Marshal(session)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "u1", raw["uid"])
	assert.Equal(t, "a1", raw["access_token"])
	assert.Equal(t, "r1", raw["refresh_token"])
	assert.NotContains(t, raw, "key_password")
}
