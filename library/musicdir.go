package library

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
)

// xdgMu guards the package level directories of xdg, which Reload replaces.
var xdgMu sync.Mutex

// MusicDir returns the conventional music directory of the user, if any. It
// consults $XDG_MUSIC_DIR, then the XDG_MUSIC_DIR entry of user-dirs.dirs in
// $XDG_CONFIG_HOME, and finally ~/Music if it exists. A music directory equal
// to the home directory is disabled.
//
// ref: https://www.freedesktop.org/wiki/Software/xdg-user-dirs/
func MusicDir() (string, bool) {
	xdgMu.Lock()
	// The environment may have changed since the last call.
	xdg.Reload()
	home, dir := xdg.Home, xdg.UserDirs.Music
	xdgMu.Unlock()

	dir = filepath.Clean(dir)
	if dir == "." || (home != "" && dir == filepath.Clean(home)) {
		if home == "" {
			return "", false
		}
		dir = filepath.Join(home, "Music")
	}
	// The default directory counts only once created.
	if home != "" && dir == filepath.Join(home, "Music") {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			return "", false
		}
	}
	return dir, true
}
