package presence

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// delivery records one frame handed to the transport, in global order.
type delivery struct {
	to    ConnID
	frame map[string]any
}

type recordingDeliverer struct {
	mu     sync.Mutex
	live   map[ConnID]bool
	frames []delivery
}

func newRecordingDeliverer(ids ...ConnID) *recordingDeliverer {
	d := &recordingDeliverer{live: make(map[ConnID]bool)}
	for _, id := range ids {
		d.live[id] = true
	}
	return d
}

func (d *recordingDeliverer) Deliver(id ConnID, payload []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.live[id] {
		return false
	}
	var frame map[string]any
	if err := json.Unmarshal(payload, &frame); err != nil {
		panic(err)
	}
	d.frames = append(d.frames, delivery{to: id, frame: frame})
	return true
}

func (d *recordingDeliverer) kill(id ConnID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.live, id)
}

func (d *recordingDeliverer) connect(id ConnID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live[id] = true
}

func (d *recordingDeliverer) all() []delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]delivery(nil), d.frames...)
}

func (d *recordingDeliverer) to(id ConnID) []map[string]any {
	var out []map[string]any
	for _, dl := range d.all() {
		if dl.to == id {
			out = append(out, dl.frame)
		}
	}
	return out
}

func (d *recordingDeliverer) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
}

func usernames(t *testing.T, frame map[string]any) []string {
	t.Helper()
	require.Equal(t, TypePresence, frame["type"])
	users, ok := frame["users"].([]any)
	require.True(t, ok, "users must be a list: %v", frame["users"])
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.(map[string]any)["username"].(string))
	}
	return names
}
