package markers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
)

// ErrEmptyActivity indicates a marker without an activity id.
var ErrEmptyActivity = errors.New("activity id required")

const joinedPrefix = "joined:"

// Pebble persists markers in a local pebble database so they survive
// restarts of the client.
type Pebble struct {
	db  *pebble.DB
	now func() time.Time
}

// OpenPebble opens or creates the marker database at path.
func OpenPebble(path string) (*Pebble, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create marker dir: %w", err)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open marker db: %w", err)
	}
	return &Pebble{db: db, now: time.Now}, nil
}

func (p *Pebble) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Pebble) HasJoined(_ context.Context, activityID string) (bool, error) {
	_, closer, err := p.db.Get(joinedKey(activityID))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read marker: %w", err)
	}
	_ = closer.Close()
	return true, nil
}

func (p *Pebble) MarkJoined(ctx context.Context, activityID string) error {
	if strings.TrimSpace(activityID) == "" {
		return ErrEmptyActivity
	}
	joined, err := p.HasJoined(ctx, activityID)
	if err != nil {
		return err
	}
	if joined {
		return nil
	}
	value := []byte(p.now().UTC().Format(time.RFC3339Nano))
	if err := p.db.Set(joinedKey(activityID), value, pebble.Sync); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

func (p *Pebble) Forget(_ context.Context, activityID string) error {
	if err := p.db.Delete(joinedKey(activityID), pebble.Sync); err != nil {
		return fmt.Errorf("delete marker: %w", err)
	}
	return nil
}

func (p *Pebble) List(context.Context) ([]Marker, error) {
	prefix := []byte(joinedPrefix)
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: []byte(joinedPrefix[:len(joinedPrefix)-1] + ";"),
	})
	if err != nil {
		return nil, fmt.Errorf("iterate markers: %w", err)
	}
	defer it.Close()

	var out []Marker
	for ok := it.First(); ok; ok = it.Next() {
		id := string(it.Key()[len(prefix):])
		at, err := time.Parse(time.RFC3339Nano, string(it.Value()))
		if err != nil {
			at = time.Time{}
		}
		out = append(out, Marker{ActivityID: id, JoinedAt: at})
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("iterate markers: %w", err)
	}
	sortMarkers(out)
	return out, nil
}

func joinedKey(activityID string) []byte {
	return []byte(joinedPrefix + strings.TrimSpace(activityID))
}
