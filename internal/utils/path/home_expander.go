// Package pathutils resolves user supplied file paths such as label manifests,
// token files, and files committed by gitfleet.
package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	homeShortcutConstant       = "~"
	forwardSlashPrefixConstant = homeShortcutConstant + "/"
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// HomeExpander replaces a leading ~ with the user's home directory. The home
// directory is looked up once, on first use.
type HomeExpander struct {
	resolveHome func() (string, error)
}

// NewHomeExpander constructs a HomeExpander using os.UserHomeDir.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(os.UserHomeDir)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom provider.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{resolveHome: sync.OnceValues(provider)}
}

// Expand returns candidatePath with a leading ~ or ~/ resolved. Paths such as
// ~user, and every path when the home directory is unknown, are returned as is.
func (expander *HomeExpander) Expand(candidatePath string) string {
	if expander == nil || !strings.HasPrefix(candidatePath, homeShortcutConstant) {
		return candidatePath
	}

	relativePath, isHomeRelative := homeRelativePath(candidatePath)
	if !isHomeRelative {
		return candidatePath
	}

	homeDirectory, homeError := expander.resolveHome()
	if homeError != nil || len(homeDirectory) == 0 {
		return candidatePath
	}
	if len(relativePath) == 0 {
		return homeDirectory
	}
	return filepath.Join(homeDirectory, relativePath)
}

func homeRelativePath(candidatePath string) (string, bool) {
	if candidatePath == homeShortcutConstant {
		return "", true
	}
	for _, prefix := range []string{forwardSlashPrefixConstant, homeShortcutConstant + string(os.PathSeparator)} {
		if relativePath, found := strings.CutPrefix(candidatePath, prefix); found {
			return relativePath, true
		}
	}
	return "", false
}
