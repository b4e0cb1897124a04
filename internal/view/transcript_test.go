package view

import (
	"testing"
	"time"
)

func TestTranscript_AppendKeepsOrder(t *testing.T) {
	var tr Transcript
	now := time.Now()

	tr.Append(SenderUser, "Q1", now)
	tr.Append(SenderAssistant, "A1", now)

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Sender != SenderUser || entries[0].Text != "Q1" {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Sender != SenderAssistant || entries[1].Text != "A1" {
		t.Errorf("unexpected second entry %+v", entries[1])
	}
	if entries[0].ID == entries[1].ID {
		t.Error("expected distinct ids")
	}
}

func TestTranscript_SingleProvisional(t *testing.T) {
	var tr Transcript
	now := time.Now()

	tr.Append(SenderUser, "Q1", now)
	tr.AppendProvisional("thinking…", now)
	tr.Append(SenderUser, "Q2", now)
	tr.AppendProvisional("thinking…", now)

	count := 0
	for _, e := range tr.Entries() {
		if e.Provisional {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one provisional entry, got %d", count)
	}
	if tr.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", tr.Len())
	}

	if !tr.RemoveProvisional() {
		t.Fatal("expected provisional entry to be removed")
	}
	if tr.HasProvisional() {
		t.Error("provisional entry still present")
	}
	if tr.RemoveProvisional() {
		t.Error("second removal should report false")
	}
}

func TestTranscript_EntriesIsCopy(t *testing.T) {
	var tr Transcript
	tr.Append(SenderUser, "Q1", time.Now())

	entries := tr.Entries()
	entries[0].Text = "changed"

	if tr.Entries()[0].Text != "Q1" {
		t.Error("Entries should not expose internal storage")
	}
}
