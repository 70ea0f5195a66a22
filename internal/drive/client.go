// Package drive is the Proton Drive API client the processor replicates
// through, plus the remote-path helpers shared with the watcher and
// scanner.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/rashomon-gh/proton-drive-sync/internal/auth"
	"github.com/rashomon-gh/proton-drive-sync/internal/syncerr"
)

// APIBase is the Proton Drive API origin.
const APIBase = "https://drive-api.proton.me"

const (
	nodesEndpoint = "/drive/v2/nodes"
	filesEndpoint = "/drive/v2/files"
)

// apiSuccessCode is Proton's in-band success marker.
const apiSuccessCode = 1000

// ErrNodeNotFound marks a delete against a node that no longer exists
// remotely. Retried deletes treat it as success.
var ErrNodeNotFound = errors.New("remote node not found")

type createNodeRequest struct {
	ParentLinkID string `json:"ParentLinkID"`
	NodeName     string `json:"NodeName"`
	NodeType     string `json:"NodeType"`
}

type renameNodeRequest struct {
	Name string `json:"Name"`
}

type nodeAPIResponse struct {
	UID            string  `json:"UID"`
	ParentLinkID   string  `json:"ParentLinkID"`
	Name           string  `json:"Name"`
	NodeType       string  `json:"NodeType"`
	MIMEType       *string `json:"MIMEType"`
	ActiveRevision *struct {
		ID                string  `json:"ID"`
		Size              *int64  `json:"Size"`
		ManifestSignature *string `json:"ManifestSignature"`
	} `json:"ActiveRevision"`
}

type createNodeResponse struct {
	Code int              `json:"Code"`
	Node *nodeAPIResponse `json:"Node"`
}

type codeResponse struct {
	Code int `json:"Code"`
}

type renameNodeResponse struct {
	Code int              `json:"Code"`
	Node *nodeAPIResponse `json:"Node"`
}

type listNodesResponse struct {
	Code  int               `json:"Code"`
	Nodes []nodeAPIResponse `json:"Nodes"`
}

// APIClient implements Client against the HTTP API. A circuit breaker
// sits in front of every request so a flapping remote trips fast instead
// of burning every job's retry budget on timeouts.
type APIClient struct {
	client      *http.Client
	apiBase     string
	authManager *auth.Manager
	breaker     *gobreaker.CircuitBreaker

	mu      sync.RWMutex
	session auth.Session
}

// NewAPIClient creates a client against the production API.
func NewAPIClient(session auth.Session) *APIClient {
	return NewAPIClientWithBase(APIBase, auth.APIBase, session)
}

// NewAPIClientWithBase creates a client against custom origins, used by
// tests.
func NewAPIClientWithBase(apiBase, authBase string, session auth.Session) *APIClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "proton-drive-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Remote API circuit breaker state changed")
		},
	})

	return &APIClient{
		client:      &http.Client{Timeout: 2 * time.Minute},
		apiBase:     apiBase,
		authManager: auth.NewManagerWithAPIBase(authBase),
		breaker:     breaker,
		session:     session,
	}
}

// Session returns the current session tokens.
func (c *APIClient) Session() auth.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// RefreshSession swaps the access token using the refresh token and
// persists the result so a restart keeps the fresh pair.
func (c *APIClient) RefreshSession(ctx context.Context) error {
	c.mu.RLock()
	current := c.session
	c.mu.RUnlock()

	refreshed, err := c.authManager.RefreshSession(ctx, current)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session = refreshed
	c.mu.Unlock()

	if err := auth.SaveSession(refreshed); err != nil {
		logrus.WithError(err).Warn("Failed to persist refreshed session")
	}
	return nil
}

// RootID returns the account root node id create calls fall back to.
func (c *APIClient) RootID() string {
	return "root"
}

// CreateFile uploads content as a new file node under parentUID.
func (c *APIClient) CreateFile(ctx context.Context, parentUID, name string, content []byte, mimeType string) (*CreateResult, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	fields := map[string]string{
		"ParentLinkID": parentUID,
		"NodeName":     name,
		"NodeType":     "file",
	}
	if mimeType != "" {
		fields["MIMEType"] = mimeType
	}
	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("%w: %v", syncerr.ErrAPI, err)
		}
	}

	part, err := form.CreateFormFile("File", name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", syncerr.ErrAPI, err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("%w: %v", syncerr.ErrAPI, err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", syncerr.ErrAPI, err)
	}

	resp, err := c.do(ctx, http.MethodPost, filesEndpoint, nil, &body, form.FormDataContentType())
	if err != nil {
		return &CreateResult{Success: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &CreateResult{
			Success: false,
			Error:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode, text),
		}, nil
	}

	var created createNodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("%w: malformed create response: %v", syncerr.ErrAPI, err)
	}

	if created.Code == apiSuccessCode && created.Node != nil {
		return &CreateResult{Success: true, NodeUID: created.Node.UID}, nil
	}
	return &CreateResult{
		Success: false,
		Error:   fmt.Sprintf("API error code: %d", created.Code),
	}, nil
}

// CreateFolder creates a folder node under parentUID.
func (c *APIClient) CreateFolder(ctx context.Context, parentUID, name string) (*CreateResult, error) {
	reqBody, err := json.Marshal(createNodeRequest{
		ParentLinkID: parentUID,
		NodeName:     name,
		NodeType:     "folder",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", syncerr.ErrAPI, err)
	}

	resp, err := c.do(ctx, http.MethodPost, nodesEndpoint, nil, bytes.NewReader(reqBody), "application/json")
	if err != nil {
		return &CreateResult{Success: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &CreateResult{
			Success: false,
			Error:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode, text),
		}, nil
	}

	var created createNodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("%w: malformed create response: %v", syncerr.ErrAPI, err)
	}

	if created.Code == apiSuccessCode && created.Node != nil {
		return &CreateResult{Success: true, NodeUID: created.Node.UID}, nil
	}
	return &CreateResult{
		Success: false,
		Error:   fmt.Sprintf("API error code: %d", created.Code),
	}, nil
}

// DeleteNode moves a node to the trash.
func (c *APIClient) DeleteNode(ctx context.Context, uid string) error {
	return c.deleteNode(ctx, uid, false)
}

// DeleteNodePermanent deletes a node without a trash stop.
func (c *APIClient) DeleteNodePermanent(ctx context.Context, uid string) error {
	return c.deleteNode(ctx, uid, true)
}

func (c *APIClient) deleteNode(ctx context.Context, uid string, permanent bool) error {
	query := url.Values{}
	if permanent {
		query.Set("permanent", "true")
	}

	resp, err := c.do(ctx, http.MethodDelete, nodesEndpoint+"/"+url.PathEscape(uid), query, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, uid)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: delete failed: HTTP %d", syncerr.ErrAPI, resp.StatusCode)
	}

	var deleted codeResponse
	if err := json.NewDecoder(resp.Body).Decode(&deleted); err != nil {
		return fmt.Errorf("%w: malformed delete response: %v", syncerr.ErrAPI, err)
	}
	if deleted.Code != apiSuccessCode {
		return fmt.Errorf("%w: delete error code: %d", syncerr.ErrAPI, deleted.Code)
	}
	return nil
}

// RenameNode renames a node and returns its (possibly new) uid.
func (c *APIClient) RenameNode(ctx context.Context, uid, newName string) (string, error) {
	reqBody, err := json.Marshal(renameNodeRequest{Name: newName})
	if err != nil {
		return "", fmt.Errorf("%w: %v", syncerr.ErrAPI, err)
	}

	resp, err := c.do(ctx, http.MethodPut, nodesEndpoint+"/"+url.PathEscape(uid), nil, bytes.NewReader(reqBody), "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: rename failed: HTTP %d", syncerr.ErrAPI, resp.StatusCode)
	}

	var renamed renameNodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&renamed); err != nil {
		return "", fmt.Errorf("%w: malformed rename response: %v", syncerr.ErrAPI, err)
	}
	if renamed.Code != apiSuccessCode || renamed.Node == nil {
		return "", fmt.Errorf("%w: rename error code: %d", syncerr.ErrAPI, renamed.Code)
	}
	return renamed.Node.UID, nil
}

// ListNodes returns the children of parentUID.
func (c *APIClient) ListNodes(ctx context.Context, parentUID string) ([]NodeData, error) {
	query := url.Values{}
	query.Set("ParentLinkID", parentUID)

	resp, err := c.do(ctx, http.MethodGet, nodesEndpoint, query, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: list nodes failed: HTTP %d", syncerr.ErrAPI, resp.StatusCode)
	}

	var listed listNodesResponse
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		return nil, fmt.Errorf("%w: malformed list response: %v", syncerr.ErrAPI, err)
	}
	if listed.Code != apiSuccessCode {
		return nil, fmt.Errorf("%w: list nodes error code: %d", syncerr.ErrAPI, listed.Code)
	}

	nodes := make([]NodeData, 0, len(listed.Nodes))
	for _, n := range listed.Nodes {
		nodes = append(nodes, toNodeData(n))
	}
	return nodes, nil
}

// GetNodeByPath walks the remote tree from shareUID one segment at a
// time and returns the node at remotePath, or nil when any segment is
// missing.
func (c *APIClient) GetNodeByPath(ctx context.Context, shareUID, remotePath string) (*NodeData, error) {
	segments := strings.FieldsFunc(NormalizePath(remotePath), func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return nil, nil
	}

	currentUID := shareUID
	var found *NodeData
	for _, segment := range segments {
		children, err := c.ListNodes(ctx, currentUID)
		if err != nil {
			return nil, err
		}

		found = nil
		for i := range children {
			if children[i].Name == segment {
				found = &children[i]
				break
			}
		}
		if found == nil {
			return nil, nil
		}
		currentUID = found.UID
	}
	return found, nil
}

func (c *APIClient) do(ctx context.Context, method, endpoint string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	target := c.apiBase + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", syncerr.ErrAPI, err)
		}

		session := c.Session()
		req.Header.Set("Authorization", "Bearer "+session.AccessToken)
		req.Header.Set("x-pm-uid", session.UID)
		req.Header.Set("x-pm-request-id", uuid.NewString())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", syncerr.ErrAPI, err)
		}
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: remote temporarily unavailable: %v", syncerr.ErrAPI, err)
		}
		return nil, err
	}
	return result.(*http.Response), nil
}

func toNodeData(n nodeAPIResponse) NodeData {
	node := NodeData{
		UID:       n.UID,
		Name:      n.Name,
		NodeType:  n.NodeType,
		MediaType: n.MIMEType,
	}
	if n.ParentLinkID != "" {
		parent := n.ParentLinkID
		node.ParentUID = &parent
	}
	if n.ActiveRevision != nil {
		node.ActiveRevision = &RevisionData{
			UID:               n.ActiveRevision.ID,
			Size:              n.ActiveRevision.Size,
			ManifestSignature: n.ActiveRevision.ManifestSignature,
		}
	}
	return node
}
