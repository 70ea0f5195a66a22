package store

import (
	"context"
	"database/sql"
)

// GetNodeMapping loads the remote identity of a (local, remote) path
// pair; (nil, nil) when the pair has never been created remotely.
func (s *Store) GetNodeMapping(ctx context.Context, localPath, remotePath string) (*NodeMapping, error) {
	var m NodeMapping
	err := s.db.QueryRowContext(ctx, `
		SELECT local_path, remote_path, node_uid, parent_node_uid, is_directory, updated_at
		FROM node_mapping
		WHERE local_path = ? AND remote_path = ?`,
		localPath, remotePath,
	).Scan(&m.LocalPath, &m.RemotePath, &m.NodeUID, &m.ParentNodeUID, &m.IsDirectory, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr(err)
	}
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}

// UpsertNodeMapping records the node identity a create call returned.
// The replace keeps at most one live row per node_uid for a path pair.
func (s *Store) UpsertNodeMapping(ctx context.Context, m NodeMapping) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO node_mapping (local_path, remote_path, node_uid, parent_node_uid, is_directory, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_path, remote_path) DO UPDATE SET
			node_uid = excluded.node_uid,
			parent_node_uid = excluded.parent_node_uid,
			is_directory = excluded.is_directory,
			updated_at = excluded.updated_at`,
		m.LocalPath, m.RemotePath, m.NodeUID, m.ParentNodeUID, m.IsDirectory, now(),
	)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

// DeleteNodeMapping removes a pair after its remote node is gone.
func (s *Store) DeleteNodeMapping(ctx context.Context, localPath, remotePath string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM node_mapping WHERE local_path = ? AND remote_path = ?",
		localPath, remotePath,
	)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

// NodeMappingsUnder returns every mapping whose local path starts with
// the prefix.
func (s *Store) NodeMappingsUnder(ctx context.Context, pathPrefix string) ([]NodeMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT local_path, remote_path, node_uid, parent_node_uid, is_directory, updated_at
		FROM node_mapping
		WHERE local_path LIKE ? || '%'`,
		pathPrefix,
	)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var mappings []NodeMapping
	for rows.Next() {
		var m NodeMapping
		if err := rows.Scan(&m.LocalPath, &m.RemotePath, &m.NodeUID, &m.ParentNodeUID, &m.IsDirectory, &m.UpdatedAt); err != nil {
			return nil, dbErr(err)
		}
		m.UpdatedAt = m.UpdatedAt.UTC()
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return mappings, nil
}
