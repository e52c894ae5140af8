// Package configs holds process-wide settings shared by the service and
// the MCP tools.
package configs

import "sync"

var (
	mu          sync.RWMutex
	appID       int
	appHash     string
	downloadDir string
)

// InitCredentials stores the Telegram API credentials for the process.
func InitCredentials(id int, hash string) {
	mu.Lock()
	defer mu.Unlock()
	appID = id
	appHash = hash
}

// Credentials returns the configured Telegram API credentials. An app ID of
// zero means credentials were never provided.
func Credentials() (int, string) {
	mu.RLock()
	defer mu.RUnlock()
	return appID, appHash
}

// SetDownloadDir sets the default destination directory for downloads.
func SetDownloadDir(dir string) {
	mu.Lock()
	defer mu.Unlock()
	downloadDir = dir
}

// GetDownloadDir returns the default destination directory. Empty means the
// per-platform default is resolved at download time.
func GetDownloadDir() string {
	mu.RLock()
	defer mu.RUnlock()
	return downloadDir
}
