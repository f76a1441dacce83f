package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// nextSessionName resolves the file name for a new session.
//
// The normal path scans the directory for existing sequentially numbered
// sessions and picks the next number. If the scan fails (unreadable
// directory, fresh card) the name falls back to a timestamp so a session
// can still be started.
func nextSessionName(dir string, now time.Time) string {
	seq, err := nextSequence(dir)
	if err != nil {
		return timestampName(now)
	}
	return fmt.Sprintf("%s%05d%s", sessionPrefix, seq, FileExt)
}

// nextSequence returns one past the highest sequence number in use.
func nextSequence(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	highest := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		var seq int
		if _, err := fmt.Sscanf(entry.Name(), sessionPrefix+"%05d"+FileExt, &seq); err != nil {
			continue
		}
		if seq > highest {
			highest = seq
		}
	}

	return highest + 1, nil
}

func timestampName(now time.Time) string {
	return sessionPrefix + now.Format("20060102_150405") + FileExt
}

// sanitizeHint turns an operator-supplied name hint into a session file
// name, stripping path separators and forcing the session extension.
func sanitizeHint(hint string) string {
	hint = filepath.Base(hint)
	hint = strings.TrimSuffix(hint, FileExt)
	hint = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, hint)
	return hint + FileExt
}

// Info describes one session file on disk.
type Info struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// List returns all session files in dir, oldest first by modification
// time. The manifest sidecars are not listed.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var sessions []Info
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != FileExt {
			continue
		}

		fi, err := entry.Info()
		if err != nil {
			continue
		}

		sessions = append(sessions, Info{
			Path:    filepath.Join(dir, entry.Name()),
			Name:    entry.Name(),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ModTime.Before(sessions[j].ModTime)
	})

	return sessions, nil
}

// Remove deletes a session file and its manifest sidecar. A missing
// sidecar is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	sidecar := strings.TrimSuffix(path, FileExt) + ManifestExt
	if err := os.Remove(sidecar); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove manifest sidecar: %w", err)
	}
	return nil
}
