package player

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/tunesync/internal/domain"
	"github.com/hilthontt/tunesync/internal/infrastructure/logging"
)

// Adapter drives a Backend to a target playback state, speaking the
// readiness protocol the backend's flavor requires. Each Sync call
// supersedes the previous one: an in-flight track switch is cancelled
// the moment a newer target arrives.
type Adapter struct {
	backend Backend
	flavor  Flavor
	logger  logging.Logger

	mu         sync.Mutex
	cancel     context.CancelFunc
	currentURL string
}

func NewAdapter(backend Backend, flavor Flavor, logger logging.Logger) *Adapter {
	return &Adapter{
		backend: backend,
		flavor:  flavor,
		logger:  logger,
	}
}

// Sync steers the backend toward the given target asynchronously.
func (a *Adapter) Sync(track domain.Track, position float64, playing bool) {
	if position < 0 {
		position = 0
	}

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	switching := track.URL != a.currentURL
	a.currentURL = track.URL
	a.mu.Unlock()

	go func() {
		defer cancel()
		if err := a.apply(ctx, track, position, playing, switching); err != nil && ctx.Err() == nil {
			if a.logger != nil {
				a.logger.Warn(logging.Playback, logging.Readiness, "sync failed", map[logging.ExtraKey]any{
					logging.SongURL:      track.URL,
					logging.ErrorMessage: err.Error(),
				})
			}
		}
	}()
}

func (a *Adapter) apply(ctx context.Context, track domain.Track, position float64, playing bool, switching bool) error {
	if switching {
		if err := a.backend.Load(ctx, track.URL); err != nil {
			return err
		}
		if err := a.awaitReady(ctx); err != nil {
			return err
		}
	}

	// Positions are always kept within the track: a broadcast asking
	// for a spot past the end lands on the end instead.
	if st, err := a.backend.State(ctx); err == nil && st.Duration > 0 && position > st.Duration {
		position = st.Duration
	}

	if err := a.backend.Seek(ctx, position); err != nil {
		return err
	}

	// Widget players swallow seeks on a paused track unless nudged.
	if a.flavor == FlavorEmbed {
		if err := a.backend.Play(ctx); err != nil {
			return err
		}
		if err := a.backend.Pause(ctx); err != nil {
			return err
		}
	}

	if playing {
		return a.backend.Play(ctx)
	}
	return a.backend.Pause(ctx)
}

// awaitReady blocks until the loaded track is trustworthy. The embed
// flavor needs several consecutive stable polls; the direct flavor
// reports readiness itself but gets a deadline.
func (a *Adapter) awaitReady(ctx context.Context) error {
	switch a.flavor {
	case FlavorEmbed:
		stable := 0
		ticker := time.NewTicker(embedPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				st, err := a.backend.State(ctx)
				if err != nil {
					return err
				}
				if st.Loaded {
					stable++
					if stable >= embedStablePolls {
						return nil
					}
				} else {
					stable = 0
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}

	case FlavorDirect:
		deadline, cancel := context.WithTimeout(ctx, directReadyTimeout)
		defer cancel()

		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				st, err := a.backend.State(deadline)
				if err != nil {
					return err
				}
				if st.Loaded {
					return nil
				}
			case <-deadline.Done():
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return domain.ErrPlayerNotReady
			}
		}
	}

	return nil
}

// State reads the backend's current snapshot.
func (a *Adapter) State(ctx context.Context) (State, error) {
	return a.backend.State(ctx)
}

// Events delivers the backend's notifications, end-of-track included.
func (a *Adapter) Events() <-chan Event {
	return a.backend.Events()
}

// Stop cancels any in-flight sync and pauses the backend.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = a.backend.Pause(ctx)
}

func (a *Adapter) Close() error {
	a.Stop()
	return a.backend.Close()
}
