package outbox

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Note is one chat line that could not be delivered and is parked on
// disk until the transport comes back.
type Note struct {
	Channel   string    `json:"channel"`
	Target    string    `json:"target"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Outbox is a file-backed queue of undelivered notes.
type Outbox struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Outbox {
	return &Outbox{path: path}
}

func (o *Outbox) Load() ([]Note, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.load()
}

func (o *Outbox) Save(notes []Note) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.save(notes)
}

func (o *Outbox) Push(n Note) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	notes, err := o.load()
	if err != nil {
		return err
	}
	notes = append(notes, n)
	return o.save(notes)
}

// Drain delivers parked notes in order and stops at the first failure,
// keeping the failed note and everything after it. Returns how many
// notes went out.
func (o *Outbox) Drain(send func(Note) error) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	notes, err := o.load()
	if err != nil {
		return 0, err
	}
	for i, n := range notes {
		if err := send(n); err != nil {
			if saveErr := o.save(notes[i:]); saveErr != nil {
				return i, saveErr
			}
			return i, err
		}
	}
	if len(notes) > 0 {
		if err := o.save(nil); err != nil {
			return len(notes), err
		}
	}
	return len(notes), nil
}

func (o *Outbox) load() ([]Note, error) {
	raw, err := os.ReadFile(o.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Note{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Note{}, nil
	}
	var out []Note
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Outbox) save(notes []Note) error {
	if notes == nil {
		notes = []Note{}
	}
	if dir := filepath.Dir(o.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	raw, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(o.path, raw, 0o600)
}
