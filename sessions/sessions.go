// Package sessions stores MTProto session blobs on disk, one file per
// account.
package sessions

import (
	"context"
	"os"
	"path/filepath"

	tdsession "github.com/gotd/td/session"
	"github.com/pkg/errors"
)

// Storer persists a single account's session. It satisfies the client's
// SessionStorage contract and adds deletion for logout.
type Storer interface {
	LoadSession(ctx context.Context) ([]byte, error)
	StoreSession(ctx context.Context, data []byte) error
	DeleteSession() error
}

type fileSession struct {
	path string
}

func NewFileSession(path string) Storer {
	if path == "" {
		panic("path is required")
	}

	return &fileSession{
		path: path,
	}
}

// LoadSession reads the session file. A missing file reports
// session.ErrNotFound so the client starts a fresh authorization.
func (s *fileSession) LoadSession(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, tdsession.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read session file")
	}
	return data, nil
}

// StoreSession writes the session file.
func (s *fileSession) StoreSession(ctx context.Context, data []byte) error {
	// Ensure the directory exists before writing.
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create session directory")
	}
	// Session blobs carry auth keys.
	return os.WriteFile(s.path, data, 0o600)
}

// DeleteSession removes the session file.
func (s *fileSession) DeleteSession() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(s.path)
}

// GetSessionFilePathForAccount returns the session file path for a specific account.
func GetSessionFilePathForAccount(accountID string) string {
	baseDir := os.Getenv("SESSIONS_BASE_DIR")
	if baseDir == "" {
		baseDir = "sessions"
	}

	if accountID == "" {
		accountID = "default"
	}
	return filepath.Join(baseDir, accountID, "session.json")
}
