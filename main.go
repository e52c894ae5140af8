package main

import (
	"flag"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/teleturbo/teleturbo/accounts"
	"github.com/teleturbo/teleturbo/configs"
)

func resolveDefaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, "Downloads", "TeleTurbo")
}

func main() {
	// Log level: info by default, switchable via LOG_LEVEL=debug.
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOGLEVEL")
	}
	if levelStr != "" {
		if lvl, err := logrus.ParseLevel(levelStr); err == nil {
			logrus.SetLevel(lvl)
		}
	}

	var (
		port        string
		downloadDir string
	)
	flag.StringVar(&port, "port", ":18090", "listen address")
	flag.StringVar(&downloadDir, "download-dir", "", "default download directory")
	flag.Parse()

	appID, _ := strconv.Atoi(os.Getenv("TELEGRAM_APP_ID"))
	appHash := os.Getenv("TELEGRAM_APP_HASH")
	if appID == 0 || appHash == "" {
		logrus.Warn("TELEGRAM_APP_ID/TELEGRAM_APP_HASH not set; login and downloads will fail until they are provided")
	}
	configs.InitCredentials(appID, appHash)

	if downloadDir == "" {
		downloadDir = os.Getenv("DOWNLOAD_DIR")
	}
	if downloadDir == "" {
		downloadDir = resolveDefaultDownloadDir()
	}
	configs.SetDownloadDir(downloadDir)

	storePath := os.Getenv("ACCOUNTS_STORE")
	if storePath == "" {
		storePath = "accounts.json"
	}
	sessionBase := os.Getenv("SESSIONS_BASE_DIR")
	if sessionBase == "" {
		sessionBase = "sessions"
	}

	accountManager, err := accounts.NewManager(storePath, sessionBase)
	if err != nil {
		logrus.Fatalf("failed to init account manager: %v", err)
	}

	teleturboService := NewTeleTurboService(accountManager)

	appServer := NewAppServer(teleturboService, accountManager)
	if err := appServer.Start(port); err != nil {
		logrus.Fatalf("failed to run server: %v", err)
	}
}
