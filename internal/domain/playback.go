package domain

// PlaybackState is the replicated object every client converges on.
// Convergence is last-write-wins keyed on semantic equality of
// (track, position, playing); there are no sequence numbers.
type PlaybackState struct {
	CurrentTrack Track   `json:"currentTrack"`
	Position     float64 `json:"positionSeconds"`
	IsPlaying    bool    `json:"isPlaying"`
	IsShuffle    bool    `json:"isShuffle"`
	IsRepeat     bool    `json:"isRepeat"`
}

// SameTriple reports whether an incoming (track, position, playing)
// triple matches the current state exactly. A matching triple is a
// client's own broadcast echoing back and must be a no-op.
func (s PlaybackState) SameTriple(url string, position float64, playing bool) bool {
	return s.CurrentTrack.URL == url && s.Position == position && s.IsPlaying == playing
}

// SetShuffle enables or disables shuffle; enabling clears repeat.
// Shuffle and repeat are mutually exclusive.
func (s *PlaybackState) SetShuffle(on bool) {
	s.IsShuffle = on
	if on {
		s.IsRepeat = false
	}
}

// SetRepeat enables or disables repeat; enabling clears shuffle.
func (s *PlaybackState) SetRepeat(on bool) {
	s.IsRepeat = on
	if on {
		s.IsShuffle = false
	}
}
