package engine

import (
	"encoding/json"
	"os"
	"time"

	"github.com/hilthontt/tunesync/internal/domain"
)

// Session is the cached identity a client uses to rejoin its room after
// a restart. It expires with the room so a stale cache never points at
// a room the server has already reaped.
type Session struct {
	RoomID  string    `json:"roomId"`
	User    string    `json:"user"`
	SavedAt time.Time `json:"savedAt"`
}

// SaveSession writes the session cache. A missing path disables caching.
func SaveSession(path string, s Session) error {
	if path == "" {
		return nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// LoadSession reads the session cache. It returns ok=false when the
// file is absent, unreadable or older than the room lifetime.
func LoadSession(path string) (Session, bool) {
	if path == "" {
		return Session{}, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Session{}, false
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, false
	}

	if s.RoomID == "" || s.User == "" {
		return Session{}, false
	}
	if time.Since(s.SavedAt) > domain.RoomTTL {
		return Session{}, false
	}

	return s, true
}

// ClearSession removes the cache. Missing files are fine.
func ClearSession(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
