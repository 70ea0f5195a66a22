// Package auth completes the SRP-6a handshake with the Proton account
// API and manages the resulting session: keyring persistence, forking
// and refresh.
package auth

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	srp "github.com/ProtonMail/go-srp"

	"github.com/rashomon-gh/proton-drive-sync/internal/syncerr"
)

// APIBase is the Proton account API origin.
const APIBase = "https://mail-api.proton.me"

const (
	authInfoEndpoint       = "/core/v4/auth/info"
	srpAuthEndpoint        = "/core/v4/auth/srp"
	sessionForkEndpoint    = "/core/v4/auth/sessions/fork"
	sessionRefreshEndpoint = "/core/v4/auth/refresh"
	keysEndpoint           = "/core/v4/keys"
	addressesEndpoint      = "/core/v4/addresses"
)

// apiSuccessCode is Proton's in-band success marker.
const apiSuccessCode = 1000

// srpProofBits is the SRP group size Proton uses.
const srpProofBits = 2048

// AddressData is one account address with its opaque receive key.
type AddressData struct {
	Email      string
	ReceiveKey *string
}

// Manager talks to the Proton account API.
type Manager struct {
	client  *http.Client
	apiBase string
}

// NewManager creates a manager against the production API.
func NewManager() *Manager {
	return NewManagerWithAPIBase(APIBase)
}

// NewManagerWithAPIBase creates a manager against a custom origin, used
// by tests.
func NewManagerWithAPIBase(apiBase string) *Manager {
	return &Manager{
		client:  &http.Client{Timeout: 30 * time.Second},
		apiBase: apiBase,
	}
}

type authInfoResponse struct {
	Code            int    `json:"Code"`
	Modulus         string `json:"Modulus"`
	ServerEphemeral string `json:"ServerEphemeral"`
	Version         int    `json:"Version"`
	Salt            string `json:"Salt"`
	SRPSession      string `json:"SRPSession"`
	TwoFactor       int    `json:"2FA,omitempty"`
}

type srpAuthRequest struct {
	Username        string `json:"Username"`
	ClientEphemeral string `json:"ClientEphemeral"`
	ClientProof     string `json:"ClientProof"`
	SRPSession      string `json:"SRPSession"`
}

type srpAuthResponse struct {
	Code         int    `json:"Code"`
	ServerProof  string `json:"ServerProof"`
	AccessToken  string `json:"AccessToken"`
	RefreshToken string `json:"RefreshToken"`
	UID          string `json:"UID"`
}

type sessionTokenResponse struct {
	Code         int    `json:"Code"`
	AccessToken  string `json:"AccessToken"`
	RefreshToken string `json:"RefreshToken"`
	UID          string `json:"UID"`
	ExpiresIn    int64  `json:"ExpiresIn"`
}

type keysResponse struct {
	Code int `json:"Code"`
	Keys []struct {
		ID         string `json:"ID"`
		Primary    int    `json:"Primary"`
		PrivateKey string `json:"PrivateKey"`
	} `json:"Keys"`
}

type addressesResponse struct {
	Code      int `json:"Code"`
	Addresses []struct {
		ID         string  `json:"ID"`
		Email      string  `json:"Email"`
		ReceiveKey *string `json:"ReceiveKey"`
	} `json:"Addresses"`
}

// Authenticate runs the SRP-6a exchange and returns a fresh session.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (Session, error) {
	info, err := m.getAuthInfo(ctx, username)
	if err != nil {
		return Session{}, err
	}

	srpAuth, err := srp.NewAuth(info.Version, username, []byte(password),
		info.Salt, info.Modulus, info.ServerEphemeral)
	if err != nil {
		return Session{}, fmt.Errorf("%w: srp setup failed: %v", syncerr.ErrAuth, err)
	}

	proofs, err := srpAuth.GenerateProofs(srpProofBits)
	if err != nil {
		return Session{}, fmt.Errorf("%w: srp proof generation failed: %v", syncerr.ErrAuth, err)
	}

	resp, err := m.sendSRPAuth(ctx, srpAuthRequest{
		Username:        username,
		ClientEphemeral: base64.StdEncoding.EncodeToString(proofs.ClientEphemeral),
		ClientProof:     base64.StdEncoding.EncodeToString(proofs.ClientProof),
		SRPSession:      info.SRPSession,
	})
	if err != nil {
		return Session{}, err
	}

	serverProof, err := base64.StdEncoding.DecodeString(resp.ServerProof)
	if err != nil {
		return Session{}, fmt.Errorf("%w: malformed server proof: %v", syncerr.ErrAuth, err)
	}
	if subtle.ConstantTimeCompare(serverProof, proofs.ExpectedServerProof) != 1 {
		return Session{}, fmt.Errorf("%w: server proof mismatch", syncerr.ErrAuth)
	}

	return Session{
		UID:          resp.UID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

// ForkSession creates a child session from an existing one.
func (m *Manager) ForkSession(ctx context.Context, session Session) (Session, error) {
	var resp sessionTokenResponse
	err := m.doJSON(ctx, http.MethodPost, sessionForkEndpoint, &session, nil, &resp)
	if err != nil {
		return Session{}, err
	}
	if resp.Code != apiSuccessCode {
		return Session{}, fmt.Errorf("%w: session fork error code: %d", syncerr.ErrAuth, resp.Code)
	}

	return Session{
		UID:          resp.UID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		KeyPassword:  session.KeyPassword,
		PrimaryKey:   session.PrimaryKey,
	}, nil
}

// RefreshSession exchanges the refresh token for new tokens. The UID is
// preserved.
func (m *Manager) RefreshSession(ctx context.Context, session Session) (Session, error) {
	body := map[string]string{
		"GrantType":    "refresh_token",
		"RefreshToken": session.RefreshToken,
	}

	var resp sessionTokenResponse
	if err := m.doJSON(ctx, http.MethodPost, sessionRefreshEndpoint, &session, body, &resp); err != nil {
		return Session{}, err
	}
	if resp.Code != apiSuccessCode {
		return Session{}, fmt.Errorf("%w: session refresh error code: %d", syncerr.ErrAuth, resp.Code)
	}

	return Session{
		UID:          session.UID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		KeyPassword:  session.KeyPassword,
		PrimaryKey:   session.PrimaryKey,
	}, nil
}

// GetPrimaryKey fetches the account's primary private key as an opaque
// armored blob.
func (m *Manager) GetPrimaryKey(ctx context.Context, session Session) (string, error) {
	var resp keysResponse
	if err := m.doJSON(ctx, http.MethodGet, keysEndpoint, &session, nil, &resp); err != nil {
		return "", err
	}
	if resp.Code != apiSuccessCode {
		return "", fmt.Errorf("%w: get keys error code: %d", syncerr.ErrAuth, resp.Code)
	}

	for _, key := range resp.Keys {
		if key.Primary == 1 {
			return key.PrivateKey, nil
		}
	}
	return "", fmt.Errorf("%w: no primary key found", syncerr.ErrAuth)
}

// GetAddresses fetches the account's addresses.
func (m *Manager) GetAddresses(ctx context.Context, session Session) ([]AddressData, error) {
	var resp addressesResponse
	if err := m.doJSON(ctx, http.MethodGet, addressesEndpoint, &session, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Code != apiSuccessCode {
		return nil, fmt.Errorf("%w: get addresses error code: %d", syncerr.ErrAuth, resp.Code)
	}

	addresses := make([]AddressData, 0, len(resp.Addresses))
	for _, a := range resp.Addresses {
		addresses = append(addresses, AddressData{Email: a.Email, ReceiveKey: a.ReceiveKey})
	}
	return addresses, nil
}

func (m *Manager) getAuthInfo(ctx context.Context, username string) (*authInfoResponse, error) {
	var resp authInfoResponse
	body := map[string]string{"Username": username}
	if err := m.doJSON(ctx, http.MethodPost, authInfoEndpoint, nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != apiSuccessCode {
		return nil, fmt.Errorf("%w: auth info error code: %d", syncerr.ErrAuth, resp.Code)
	}
	return &resp, nil
}

func (m *Manager) sendSRPAuth(ctx context.Context, req srpAuthRequest) (*srpAuthResponse, error) {
	var resp srpAuthResponse
	if err := m.doJSON(ctx, http.MethodPost, srpAuthEndpoint, nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.Code != apiSuccessCode {
		return nil, fmt.Errorf("%w: srp auth error code: %d", syncerr.ErrAuth, resp.Code)
	}
	return &resp, nil
}

func (m *Manager) doJSON(ctx context.Context, method, endpoint string, session *Session, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %v", syncerr.ErrAuth, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.apiBase+endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", syncerr.ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if session != nil {
		req.Header.Set("Authorization", "Bearer "+session.AccessToken)
		req.Header.Set("x-pm-uid", session.UID)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", syncerr.ErrAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s %s: HTTP %d: %s", syncerr.ErrAuth, method, endpoint, resp.StatusCode, text)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", syncerr.ErrAuth, err)
	}
	return nil
}
