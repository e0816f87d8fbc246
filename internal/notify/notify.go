// Package notify delivers transient user-facing notifications.
package notify

import (
	"fmt"
	"io"
	"sync"
)

// Variant is the visual weight of a notification.
type Variant string

const (
	Default     Variant = "default"
	Destructive Variant = "destructive"
)

// Notification is a toast-style message.
type Notification struct {
	Variant     Variant
	Title       string
	Description string
}

// Notifier shows notifications to the user.
type Notifier interface {
	Notify(Notification)
}

// Writer prints notifications, one per line.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter returns a Writer printing to out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) Notify(n Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()

	marker := "✓"
	if n.Variant == Destructive {
		marker = "✗"
	}
	if n.Description == "" {
		fmt.Fprintf(w.out, "%s %s\n", marker, n.Title)
		return
	}
	fmt.Fprintf(w.out, "%s %s: %s\n", marker, n.Title, n.Description)
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// Sent returns a copy of every notification received so far.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}
