// Package util provides display helpers shared by the CLI commands.
package util

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const ellipsis = "..."

// TruncateANSI truncates s to maxWidth visual columns, adding "..." if
// truncated. ANSI escape codes and wide characters are accounted for.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= len(ellipsis) {
		return ellipsis
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, ellipsis)
}

// TruncatePath shortens path to maxWidth columns by dropping leading
// characters, so the most specific directories stay visible.
func TruncatePath(path string, maxWidth int) string {
	if maxWidth <= len(ellipsis) {
		return ellipsis
	}
	runes := []rune(path)
	if len(runes) <= maxWidth {
		return path
	}
	return ellipsis + string(runes[len(runes)-(maxWidth-len(ellipsis)):])
}

// ShortenHome replaces the user's home directory prefix with "~".
func ShortenHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return shortenPrefix(path, home)
}

func shortenPrefix(path, home string) string {
	home = filepath.Clean(home)
	switch {
	case path == home:
		return "~"
	case strings.HasPrefix(path, home+string(filepath.Separator)):
		return "~" + path[len(home):]
	default:
		return path
	}
}
