package rescache

import (
	"os"

	gap "github.com/muesli/go-app-paths"
)

// defaultAppName names the per-user cache directory when Config.AppName is
// empty.
const defaultAppName = "wavescope"

// resolveRoot resolves the cache root directory and creates it if absent.
// This is the single platform-path capability: go-app-paths picks the host
// convention (XDG cache dir, ~/Library/Caches, %LocalAppData%) so no other
// code in the package branches on the platform.
func resolveRoot(cfg Config) (string, error) {
	dir := cfg.Dir
	if dir == "" {
		name := cfg.AppName
		if name == "" {
			name = defaultAppName
		}
		scope := gap.NewScope(gap.User, name)
		var err error
		dir, err = scope.CacheDir()
		if err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
