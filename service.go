package main

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/teleturbo/teleturbo/accounts"
	"github.com/teleturbo/teleturbo/configs"
	"github.com/teleturbo/teleturbo/icon"
	"github.com/teleturbo/teleturbo/session"
	"github.com/teleturbo/teleturbo/sessions"
	"github.com/teleturbo/teleturbo/telegram"
)

// TeleTurboService owns the per-account Telegram clients and the download
// registry.
type TeleTurboService struct {
	accounts    *accounts.Manager
	clients     map[string]*telegram.Client
	clientsMu   sync.Mutex
	downloads   map[string]*telegram.Task
	downloadsMu sync.RWMutex
}

// NewTeleTurboService creates the service instance.
func NewTeleTurboService(am *accounts.Manager) *TeleTurboService {
	return &TeleTurboService{
		accounts:  am,
		clients:   map[string]*telegram.Client{},
		downloads: map[string]*telegram.Task{},
	}
}

// LoginResponse reports the state of the login flow.
type LoginResponse struct {
	State string `json:"state"`
	Phone string `json:"phone,omitempty"`
}

// LoginStatusResponse reports authorization for an account.
type LoginStatusResponse struct {
	Authorized bool   `json:"authorized"`
	Phone      string `json:"phone,omitempty"`
}

// DownloadRequest is the payload for starting a download.
type DownloadRequest struct {
	AccountID   int    `json:"account_id,omitempty"`
	Link        string `json:"link" binding:"required"`
	Destination string `json:"destination,omitempty"`
	Threads     int    `json:"threads,omitempty"`
}

// DownloadResponse acknowledges a started download task.
type DownloadResponse struct {
	TaskID   string `json:"task_id"`
	Link     string `json:"link"`
	Status   string `json:"status"`
	Threads  int    `json:"threads"`
	DestDir  string `json:"destination"`
	Filename string `json:"filename,omitempty"`
}

// IconResponse reports a generated icon file.
type IconResponse struct {
	Path    string `json:"path"`
	Bytes   int    `json:"bytes"`
	Message string `json:"message"`
}

// clientFor returns (and lazily starts) the Telegram client for the account
// carried in ctx.
func (s *TeleTurboService) clientFor(ctx context.Context) (*telegram.Client, *accounts.Account, error) {
	key := session.Account(ctx)
	acc, err := s.accounts.GetByKey(key)
	if err != nil {
		return nil, nil, err
	}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if cl, ok := s.clients[key]; ok {
		return cl, acc, nil
	}

	appID, appHash := configs.Credentials()
	if appID == 0 || appHash == "" {
		return nil, nil, errors.New("telegram api credentials not configured (set TELEGRAM_APP_ID and TELEGRAM_APP_HASH)")
	}

	cl, err := telegram.NewClient(telegram.Config{
		AppID:   appID,
		AppHash: appHash,
		Storage: sessions.NewFileSession(acc.SessionPath),
		Device:  acc.Device,
		Proxy:   acc.Proxy,
	})
	if err != nil {
		return nil, nil, err
	}

	logrus.Infof("started telegram client for account %s", key)
	s.clients[key] = cl
	return cl, acc, nil
}

// dropClient stops and forgets the account's client.
func (s *TeleTurboService) dropClient(key string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if cl, ok := s.clients[key]; ok {
		cl.Close()
		delete(s.clients, key)
	}
}

// StartLogin begins the phone authentication flow for the account in ctx.
func (s *TeleTurboService) StartLogin(ctx context.Context, phone string) (*LoginResponse, error) {
	cl, acc, err := s.clientFor(ctx)
	if err != nil {
		return nil, err
	}

	result, err := cl.StartLogin(phone)
	if err != nil {
		return nil, err
	}
	if _, err := s.accounts.SetPhone(acc.ID, cl.Phone()); err != nil {
		logrus.Warnf("failed to persist phone for account %s: %v", acc.Key, err)
	}
	if result == telegram.AuthSuccess {
		s.accounts.MarkAuthorized(acc.Key, true)
	}

	return &LoginResponse{State: string(result), Phone: cl.Phone()}, nil
}

// SubmitCode submits the verification code.
func (s *TeleTurboService) SubmitCode(ctx context.Context, code string) (*LoginResponse, error) {
	cl, acc, err := s.clientFor(ctx)
	if err != nil {
		return nil, err
	}

	result, err := cl.SubmitCode(code)
	if err != nil {
		return nil, err
	}
	if result == telegram.AuthSuccess {
		s.accounts.MarkAuthorized(acc.Key, true)
	}

	return &LoginResponse{State: string(result), Phone: cl.Phone()}, nil
}

// SubmitPassword submits the 2FA cloud password.
func (s *TeleTurboService) SubmitPassword(ctx context.Context, password string) (*LoginResponse, error) {
	cl, acc, err := s.clientFor(ctx)
	if err != nil {
		return nil, err
	}

	result, err := cl.SubmitPassword(password)
	if err != nil {
		return nil, err
	}
	if result == telegram.AuthSuccess {
		s.accounts.MarkAuthorized(acc.Key, true)
	}

	return &LoginResponse{State: string(result), Phone: cl.Phone()}, nil
}

// LoginStatus reports whether the account in ctx is authorized.
func (s *TeleTurboService) LoginStatus(ctx context.Context) (*LoginStatusResponse, error) {
	cl, acc, err := s.clientFor(ctx)
	if err != nil {
		return nil, err
	}
	return &LoginStatusResponse{
		Authorized: cl.IsAuthenticated(),
		Phone:      acc.Phone,
	}, nil
}

// Logout terminates the session and removes the session file.
func (s *TeleTurboService) Logout(ctx context.Context) error {
	cl, acc, err := s.clientFor(ctx)
	if err != nil {
		return err
	}
	if err := cl.Logout(); err != nil {
		return err
	}
	if err := sessions.NewFileSession(acc.SessionPath).DeleteSession(); err != nil {
		logrus.Warnf("failed to remove session file for %s: %v", acc.Key, err)
	}
	s.accounts.MarkAuthorized(acc.Key, false)
	s.dropClient(acc.Key)
	return nil
}

// StartDownload validates the link and starts a background download task.
func (s *TeleTurboService) StartDownload(ctx context.Context, req *DownloadRequest) (*DownloadResponse, error) {
	// Fail fast on malformed links before touching the network.
	if _, err := telegram.ParseTelegramLink(req.Link); err != nil {
		return nil, err
	}

	cl, acc, err := s.clientFor(ctx)
	if err != nil {
		return nil, err
	}
	if !cl.IsAuthenticated() {
		return nil, errors.New("account is not logged in")
	}

	dest := req.Destination
	if dest == "" {
		dest = session.DownloadDir(ctx)
	}
	if dest == "" {
		dest = acc.DownloadDir
	}
	if dest == "" {
		dest = configs.GetDownloadDir()
	}

	threads := req.Threads
	if threads <= 0 {
		if o := session.ThreadsOverride(ctx); o != nil {
			threads = *o
		} else {
			threads = telegram.DefaultParallelism()
		}
	}

	task := cl.StartDownload(req.Link, dest, threads)

	s.downloadsMu.Lock()
	s.downloads[task.ID] = task
	s.downloadsMu.Unlock()

	logrus.Infof("download %s started for account %s: %s", task.ID, acc.Key, req.Link)

	return &DownloadResponse{
		TaskID:  task.ID,
		Link:    req.Link,
		Status:  string(task.GetStatus()),
		Threads: threads,
		DestDir: dest,
	}, nil
}

// GetDownload returns a snapshot of one download task.
func (s *TeleTurboService) GetDownload(id string) (*telegram.TaskInfo, error) {
	s.downloadsMu.RLock()
	task, ok := s.downloads[id]
	s.downloadsMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("download %s not found", id)
	}
	info := task.Info()
	return &info, nil
}

// ListDownloads returns snapshots of all known download tasks.
func (s *TeleTurboService) ListDownloads() []telegram.TaskInfo {
	s.downloadsMu.RLock()
	defer s.downloadsMu.RUnlock()

	out := make([]telegram.TaskInfo, 0, len(s.downloads))
	for _, task := range s.downloads {
		out = append(out, task.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CancelDownload cancels an active download and forgets it.
func (s *TeleTurboService) CancelDownload(id string) error {
	s.downloadsMu.Lock()
	defer s.downloadsMu.Unlock()

	task, ok := s.downloads[id]
	if !ok {
		return errors.Errorf("download %s not found", id)
	}
	task.Cancel()
	delete(s.downloads, id)
	return nil
}

// RenderDownloadsTable renders the download list as an aligned text table
// for terminal-oriented consumers.
func (s *TeleTurboService) RenderDownloadsTable() string {
	infos := s.ListDownloads()
	if len(infos) == 0 {
		return "no downloads"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s  %s  %-11s  %8s  %10s\n",
		runewidth.FillRight("ID", 16), runewidth.FillRight("FILE", 32), "STATUS", "PROGRESS", "SPEED"))

	for _, info := range infos {
		name := info.Filename
		if name == "" {
			name = info.Link
		}
		// Truncate by display width, not bytes; filenames are often CJK.
		name = runewidth.Truncate(name, 32, "…")
		b.WriteString(fmt.Sprintf("%s  %s  %-11s  %7.1f%%  %8.1fKB/s\n",
			runewidth.FillRight(info.ID, 16),
			runewidth.FillRight(name, 32),
			info.Status,
			info.Progress,
			info.Speed/1024,
		))
	}
	return b.String()
}

// SystemInfo returns host information for download tuning.
func (s *TeleTurboService) SystemInfo() map[string]any {
	return map[string]any{
		"cpu_cores":   runtime.NumCPU(),
		"parallelism": telegram.DefaultParallelism(),
		"os":          runtime.GOOS,
		"arch":        runtime.GOARCH,
	}
}

// GenerateIcon writes the application icon into dir ("." when empty).
func (s *TeleTurboService) GenerateIcon(dir string) (*IconResponse, error) {
	if dir == "" {
		dir = "."
	}
	path, err := icon.Write(dir)
	if err != nil {
		return nil, err
	}
	return &IconResponse{
		Path:    path,
		Bytes:   len(icon.Document),
		Message: "Icon SVG created",
	}, nil
}
