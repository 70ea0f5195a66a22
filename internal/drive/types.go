package drive

import "context"

// CreateResult reports the outcome of a create call. Failures the API
// reports in-band arrive here with Success false rather than as errors.
type CreateResult struct {
	Success bool
	NodeUID string
	Error   string
}

// RevisionData is the active revision of a file node.
type RevisionData struct {
	UID               string
	Size              *int64
	ManifestSignature *string
}

// NodeData is a file or folder in the remote tree.
type NodeData struct {
	UID            string
	ParentUID      *string
	Name           string
	NodeType       string
	MediaType      *string
	ActiveRevision *RevisionData
}

// Client is the remote surface the processor depends on. Implementations
// must make every operation idempotent-tolerant: creating over an
// existing node and deleting a missing node are the caller's retries.
type Client interface {
	CreateFile(ctx context.Context, parentUID, name string, content []byte, mimeType string) (*CreateResult, error)
	CreateFolder(ctx context.Context, parentUID, name string) (*CreateResult, error)
	DeleteNode(ctx context.Context, uid string) error
	DeleteNodePermanent(ctx context.Context, uid string) error
	RenameNode(ctx context.Context, uid, newName string) (string, error)
	ListNodes(ctx context.Context, parentUID string) ([]NodeData, error)
	GetNodeByPath(ctx context.Context, shareUID, remotePath string) (*NodeData, error)
	RefreshSession(ctx context.Context) error
	RootID() string
}
