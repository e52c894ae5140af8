package accounts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/teleturbo/teleturbo/session"
)

// Account represents an isolated Telegram account with its own phone
// number, proxy, device profile and session storage.
type Account struct {
	ID          int                    `json:"id"`
	Key         string                 `json:"key"`
	Name        string                 `json:"name,omitempty"`
	Phone       string                 `json:"phone,omitempty"`
	Proxy       string                 `json:"proxy,omitempty"`
	Device      *session.DeviceProfile `json:"device,omitempty"`
	SessionPath string                 `json:"session_path"`
	DownloadDir string                 `json:"download_dir,omitempty"`
	Authorized  bool                   `json:"authorized"`
	LastLogin   time.Time              `json:"last_login,omitempty"`
}

// Manager manages account lifecycle and persistence.
type Manager struct {
	mu          sync.Mutex
	accounts    map[int]*Account
	keyIndex    map[string]*Account
	nextID      int
	storePath   string
	sessionBase string
}

// NewManager creates a manager with persistence.
// storePath: JSON file path. sessionBase: base dir for session files (per account).
func NewManager(storePath, sessionBase string) (*Manager, error) {
	m := &Manager{
		accounts:    map[int]*Account{},
		keyIndex:    map[string]*Account{},
		nextID:      1,
		storePath:   storePath,
		sessionBase: sessionBase,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Create creates a new account with optional phone/name and a generated
// device profile.
func (m *Manager) Create(phone, name string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++

	key := fmt.Sprintf("acc_%d", id)

	acc := &Account{
		ID:          id,
		Key:         key,
		Name:        name,
		Phone:       phone,
		Device:      session.RandomDeviceProfile(),
		SessionPath: filepath.Join(m.sessionBase, key, "session.json"),
		Authorized:  false,
	}

	m.accounts[id] = acc
	m.keyIndex[key] = acc
	return acc, m.saveLocked()
}

// Get returns account by id.
func (m *Manager) Get(id int) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, errors.Errorf("account %d not found", id)
	}
	return acc, nil
}

// GetByKey returns account by key.
func (m *Manager) GetByKey(key string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.keyIndex[key]
	if !ok {
		return nil, errors.Errorf("account %s not found", key)
	}
	return acc, nil
}

// List returns shallow copies of accounts.
func (m *Manager) List() []Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		copyAcc := *acc
		out = append(out, copyAcc)
	}
	return out
}

// SetPhone updates the phone number and resets authorization, since a new
// number means a new login flow.
func (m *Manager) SetPhone(id int, phone string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, errors.Errorf("account %d not found", id)
	}
	if acc.Phone != phone {
		acc.Phone = phone
		acc.Authorized = false
	}
	return acc, m.saveLocked()
}

// SetName sets name for account.
func (m *Manager) SetName(id int, name string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, errors.Errorf("account %d not found", id)
	}
	acc.Name = name
	return acc, m.saveLocked()
}

// SetProxy updates the proxy URL for the account. Takes effect on the next
// client start.
func (m *Manager) SetProxy(id int, proxy string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, errors.Errorf("account %d not found", id)
	}
	acc.Proxy = proxy
	return acc, m.saveLocked()
}

// SetDownloadDir sets the per-account default download directory.
func (m *Manager) SetDownloadDir(id int, dir string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, errors.Errorf("account %d not found", id)
	}
	acc.DownloadDir = dir
	return acc, m.saveLocked()
}

// MarkAuthorized updates authorization status and timestamp.
func (m *Manager) MarkAuthorized(key string, authorized bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.keyIndex[key]; ok {
		acc.Authorized = authorized
		if authorized {
			acc.LastLogin = time.Now()
		}
		_ = m.saveLocked()
	}
}

// Delete removes account and its session files.
func (m *Manager) Delete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return errors.Errorf("account %d not found", id)
	}
	delete(m.accounts, id)
	delete(m.keyIndex, acc.Key)

	_ = os.RemoveAll(filepath.Dir(acc.SessionPath))
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if m.storePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.storePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(struct {
		NextID   int        `json:"next_id"`
		Accounts []*Account `json:"accounts"`
	}{
		NextID:   m.nextID,
		Accounts: collectAccounts(m.accounts),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.storePath, data, 0o644)
}

func (m *Manager) load() error {
	if m.storePath == "" {
		return nil
	}
	data, err := os.ReadFile(m.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var payload struct {
		NextID   int        `json:"next_id"`
		Accounts []*Account `json:"accounts"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if payload.NextID > 0 {
		m.nextID = payload.NextID
	}
	for _, acc := range payload.Accounts {
		m.accounts[acc.ID] = acc
		m.keyIndex[acc.Key] = acc
		if acc.ID >= m.nextID {
			m.nextID = acc.ID + 1
		}
	}
	return nil
}

func collectAccounts(m map[int]*Account) []*Account {
	out := make([]*Account, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
