package session

import (
	"fmt"
	"math/rand"
	"time"
)

// DeviceProfile describes the device Telegram sees in initConnection. It is
// generated once per account and persisted so the account always presents
// the same device.
type DeviceProfile struct {
	DeviceModel    string `json:"device_model"`
	SystemVersion  string `json:"system_version"`
	AppVersion     string `json:"app_version"`
	SystemLangCode string `json:"system_lang_code"`
	LangCode       string `json:"lang_code"`
}

var (
	devRng       = rand.New(rand.NewSource(time.Now().UnixNano()))
	deviceModels = []string{
		"Desktop",
		"MacBook Pro",
		"ThinkPad X1 Carbon",
		"Dell XPS 15",
	}
	systemVersions = []string{
		"Windows 10",
		"Windows 11",
		"macOS 14.5",
		"Ubuntu 24.04",
	}
)

// RandomDeviceProfile generates a plausible desktop device profile.
func RandomDeviceProfile() *DeviceProfile {
	return &DeviceProfile{
		DeviceModel:    deviceModels[devRng.Intn(len(deviceModels))],
		SystemVersion:  systemVersions[devRng.Intn(len(systemVersions))],
		AppVersion:     randomAppVersion(),
		SystemLangCode: "en-US",
		LangCode:       "en",
	}
}

func randomAppVersion() string {
	minor := 10 + devRng.Intn(6) // 5.10 - 5.15
	patch := devRng.Intn(10)
	return fmt.Sprintf("5.%d.%d", minor, patch)
}
