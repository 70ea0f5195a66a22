package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/rashomon-gh/proton-drive-sync/internal/syncerr"
)

// Keyring coordinates for the stored session.
const (
	KeyringService = "proton-drive-sync"
	KeyringAccount = "credentials"
)

// Session holds the tokens a logged-in account operates with. The key
// material fields are opaque blobs; the daemon never decrypts them.
type Session struct {
	UID          string  `json:"uid"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	KeyPassword  *string `json:"key_password,omitempty"`
	PrimaryKey   *string `json:"primary_key,omitempty"`
}

// SaveSession stores the session JSON in the OS secret store.
func SaveSession(session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%w: %v", syncerr.ErrKeyring, err)
	}
	if err := keyring.Set(KeyringService, KeyringAccount, string(data)); err != nil {
		return fmt.Errorf("%w: %v", syncerr.ErrKeyring, err)
	}
	return nil
}

// LoadSession fetches the stored session from the OS secret store.
func LoadSession() (Session, error) {
	data, err := keyring.Get(KeyringService, KeyringAccount)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Session{}, fmt.Errorf("%w: not authenticated, run 'proton-drive-sync auth login'", syncerr.ErrAuth)
		}
		return Session{}, fmt.Errorf("%w: %v", syncerr.ErrKeyring, err)
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return Session{}, fmt.Errorf("%w: stored credentials are corrupt: %v", syncerr.ErrKeyring, err)
	}
	return session, nil
}

// DeleteSession removes stored credentials. A missing entry is not an
// error.
func DeleteSession() error {
	err := keyring.Delete(KeyringService, KeyringAccount)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %v", syncerr.ErrKeyring, err)
	}
	return nil
}

// IsAuthenticated reports whether a stored session exists.
func IsAuthenticated() bool {
	_, err := keyring.Get(KeyringService, KeyringAccount)
	return err == nil
}
