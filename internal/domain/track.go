package domain

// Track is one addressable media item in a room's queue. Tracks are
// identified by URL: two tracks with the same URL are the same track,
// whatever their display names say.
type Track struct {
	Name       string `json:"songName"`
	URL        string `json:"songUrl"`
	Adder      string `json:"userName"`
	InsertedAt int64  `json:"time"`
}

// Same reports whether t and other refer to the same media item.
func (t Track) Same(other Track) bool {
	return t.URL == other.URL
}

// Zero reports whether t is the "no track" value.
func (t Track) Zero() bool {
	return t.URL == ""
}
