package notify

import (
	"bytes"
	"testing"
)

func TestWriterFormatsVariants(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	w.Notify(Notification{Title: "Merci !"})
	w.Notify(Notification{Variant: Destructive, Title: "Erreur", Description: "Impossible de mettre à jour vos préférences."})

	want := "✓ Merci !\n✗ Erreur: Impossible de mettre à jour vos préférences.\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestRecorderCopies(t *testing.T) {
	var r Recorder
	r.Notify(Notification{Title: "a"})
	sent := r.Sent()
	sent[0].Title = "changed"
	if r.Sent()[0].Title != "a" {
		t.Fatal("expected Sent to return a copy")
	}
}
