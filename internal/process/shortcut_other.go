//go:build !windows

package process

import (
	"os"
	"strings"
)

// DefaultShortcut is empty outside Windows; app.command must be configured instead.
func DefaultShortcut() string { return "" }

// ShortcutArgs opens a desktop entry or file with the desktop's default handler.
// It returns nil for an empty shortcut.
func ShortcutArgs(shortcut string) []string {
	if strings.TrimSpace(shortcut) == "" {
		return nil
	}
	return []string{"xdg-open", shortcut}
}

func DefaultTempRoot() string { return os.TempDir() }
