//go:build windows

package process

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultShortcut is the Start-Menu shortcut the PIV installer creates.
func DefaultShortcut() string {
	profile := os.Getenv("USERPROFILE")
	if profile == "" {
		return ""
	}
	return filepath.Join(profile, "AppData", "Roaming", "Microsoft", "Windows", "Start Menu", "Programs", "PIV", "PIV.lnk")
}

// ShortcutArgs opens a shortcut through the shell. The empty argument is the window
// title. It returns nil for an empty shortcut.
func ShortcutArgs(shortcut string) []string {
	if strings.TrimSpace(shortcut) == "" {
		return nil
	}
	return []string{"cmd", "/c", "start", "", shortcut}
}

// DefaultTempRoot mirrors %LOCALAPPDATA%\Temp.
func DefaultTempRoot() string {
	if la := os.Getenv("LOCALAPPDATA"); la != "" {
		return filepath.Join(la, "Temp")
	}
	return os.TempDir()
}
