package outbox

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func note(text string) Note {
	return Note{Channel: "discord", Target: "general", Text: text, CreatedAt: time.Now()}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	o := New(filepath.Join(t.TempDir(), "outbox.json"))
	notes, err := o.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(notes) != 0 {
		t.Fatalf("fresh outbox has %d notes", len(notes))
	}
}

func TestPushPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.json")
	o := New(path)
	if err := o.Push(note("first")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := o.Push(note("second")); err != nil {
		t.Fatalf("Push: %v", err)
	}

	reopened := New(path)
	notes, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(notes) != 2 || notes[0].Text != "first" || notes[1].Text != "second" {
		t.Fatalf("notes = %+v", notes)
	}
}

func TestDrainStopsAtFirstFailure(t *testing.T) {
	o := New(filepath.Join(t.TempDir(), "outbox.json"))
	for _, text := range []string{"one", "two", "three"} {
		if err := o.Push(note(text)); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	down := errors.New("transport down")
	sent, err := o.Drain(func(n Note) error {
		if n.Text == "two" {
			return down
		}
		return nil
	})
	if !errors.Is(err, down) {
		t.Fatalf("Drain err = %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}

	left, err := o.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(left) != 2 || left[0].Text != "two" || left[1].Text != "three" {
		t.Fatalf("leftover = %+v", left)
	}
}

func TestDrainEmptiesOnSuccess(t *testing.T) {
	o := New(filepath.Join(t.TempDir(), "outbox.json"))
	if err := o.Push(note("only")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	sent, err := o.Drain(func(Note) error { return nil })
	if err != nil || sent != 1 {
		t.Fatalf("Drain = %d, %v", sent, err)
	}
	left, err := o.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("leftover = %+v", left)
	}
}

func TestDrainCreatesParentDir(t *testing.T) {
	o := New(filepath.Join(t.TempDir(), "nested", "deep", "outbox.json"))
	if err := o.Push(note("hello")); err != nil {
		t.Fatalf("Push into nested dir: %v", err)
	}
	notes, err := o.Load()
	if err != nil || len(notes) != 1 {
		t.Fatalf("Load = %v, %v", notes, err)
	}
}
