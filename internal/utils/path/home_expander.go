package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	tildeSymbolConstant       = "~"
	tildeSlashPrefixConstant  = "~/"
	objectStoreSchemeConstant = "://"
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// HomeExpander rewrites leading "~" shortcuts in local file paths.
type HomeExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
	resolveOnce           sync.Once
	homeDirectory         string
}

// NewHomeExpander constructs a HomeExpander backed by os.UserHomeDir.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(os.UserHomeDir)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom provider.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{homeDirectoryProvider: provider}
}

// Expand resolves a leading tilde to the home directory. URLs and paths without a tilde are returned unchanged,
// as is every path when the home directory cannot be determined.
func (expander *HomeExpander) Expand(candidatePath string) string {
	trimmedPath := strings.TrimSpace(candidatePath)
	if expander == nil || !strings.HasPrefix(trimmedPath, tildeSymbolConstant) || strings.Contains(trimmedPath, objectStoreSchemeConstant) {
		return candidatePath
	}

	expander.resolveOnce.Do(func() {
		resolvedDirectory, resolveError := expander.homeDirectoryProvider()
		if resolveError == nil {
			expander.homeDirectory = resolvedDirectory
		}
	})
	if len(expander.homeDirectory) == 0 {
		return candidatePath
	}

	switch {
	case trimmedPath == tildeSymbolConstant:
		return expander.homeDirectory
	case strings.HasPrefix(trimmedPath, tildeSlashPrefixConstant):
		return filepath.Join(expander.homeDirectory, strings.TrimPrefix(trimmedPath, tildeSlashPrefixConstant))
	case strings.HasPrefix(trimmedPath, tildeSymbolConstant+string(os.PathSeparator)):
		return filepath.Join(expander.homeDirectory, strings.TrimPrefix(trimmedPath, tildeSymbolConstant+string(os.PathSeparator)))
	default:
		return candidatePath
	}
}
