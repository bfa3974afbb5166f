package playlist

import (
	"math/rand"
	"sync"
	"time"

	"github.com/hilthontt/tunesync/internal/domain"
)

// Queue is the client's view of the room's song list plus a cursor.
// Selection honors shuffle and repeat; the two are mutually exclusive.
type Queue struct {
	mu      sync.Mutex
	tracks  []domain.Track
	current int
	shuffle bool
	repeat  bool
	rng     *rand.Rand
}

func NewQueue() *Queue {
	return &Queue{
		current: -1,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetTracks replaces the whole queue, keeping the cursor on the same
// URL when it survives the replacement.
func (q *Queue) SetTracks(tracks []domain.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var currentURL string
	if q.current >= 0 && q.current < len(q.tracks) {
		currentURL = q.tracks[q.current].URL
	}

	q.tracks = make([]domain.Track, len(tracks))
	copy(q.tracks, tracks)

	q.current = -1
	for i, t := range q.tracks {
		if t.URL == currentURL {
			q.current = i
			break
		}
	}
	if q.current == -1 && len(q.tracks) > 0 {
		q.current = 0
	}
}

func (q *Queue) Tracks() []domain.Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	cpy := make([]domain.Track, len(q.tracks))
	copy(cpy, q.tracks)
	return cpy
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

// Current returns the track under the cursor.
func (q *Queue) Current() (domain.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current < 0 || q.current >= len(q.tracks) {
		return domain.Track{}, false
	}
	return q.tracks[q.current], true
}

// SelectByURL moves the cursor to the track with the given URL, used
// when a broadcast switches the room to a track this client didn't pick.
func (q *Queue) SelectByURL(url string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, t := range q.tracks {
		if t.URL == url {
			q.current = i
			return true
		}
	}
	return false
}

// Next advances the cursor. Repeat keeps the cursor in place so the
// same track restarts; shuffle jumps to a random other track; otherwise
// the cursor wraps past the end.
func (q *Queue) Next() (domain.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return domain.Track{}, false
	}

	switch {
	case q.repeat:
		// cursor stays put
	case q.shuffle && len(q.tracks) > 1:
		q.current = q.randomOther()
	default:
		q.current = (q.current + 1) % len(q.tracks)
	}

	return q.tracks[q.current], true
}

// Prev steps the cursor back, wrapping before the start. Shuffle picks
// a random other track, same as Next.
func (q *Queue) Prev() (domain.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return domain.Track{}, false
	}

	switch {
	case q.repeat:
		// cursor stays put
	case q.shuffle && len(q.tracks) > 1:
		q.current = q.randomOther()
	default:
		q.current = (q.current - 1 + len(q.tracks)) % len(q.tracks)
	}

	return q.tracks[q.current], true
}

// randomOther picks a random index that is not the current one.
// Callers hold q.mu and guarantee len(q.tracks) > 1.
func (q *Queue) randomOther() int {
	idx := q.rng.Intn(len(q.tracks) - 1)
	if idx >= q.current {
		idx++
	}
	return idx
}

func (q *Queue) Add(track domain.Track) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) >= domain.MaxSongs {
		return domain.ErrQuotaExceeded
	}
	for _, t := range q.tracks {
		if t.URL == track.URL {
			return domain.ErrDuplicateTrack
		}
	}

	q.tracks = append(q.tracks, track)
	if q.current == -1 {
		q.current = 0
	}
	return nil
}

// Remove drops a track by URL. Removing the current track leaves the
// cursor on the next one.
func (q *Queue) Remove(url string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, t := range q.tracks {
		if t.URL == url {
			q.tracks = append(q.tracks[:i], q.tracks[i+1:]...)

			switch {
			case len(q.tracks) == 0:
				q.current = -1
			case i < q.current:
				q.current--
			case q.current >= len(q.tracks):
				q.current = 0
			}
			return
		}
	}
}

func (q *Queue) SetShuffle(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.shuffle = on
	if on {
		q.repeat = false
	}
}

func (q *Queue) SetRepeat(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.repeat = on
	if on {
		q.shuffle = false
	}
}

func (q *Queue) Shuffle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shuffle
}

func (q *Queue) Repeat() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repeat
}
