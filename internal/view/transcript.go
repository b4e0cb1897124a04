package view

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

type Entry struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Sender      Sender    `json:"sender"`
	Provisional bool      `json:"provisional"`
	Time        time.Time `json:"time"`
}

// Transcript is the chat history in display order. It only grows, except for
// the single provisional entry, which is removed once a real answer arrives.
type Transcript struct {
	entries []Entry
}

func (t *Transcript) Append(sender Sender, text string, at time.Time) Entry {
	e := Entry{ID: uuid.NewString(), Text: text, Sender: sender, Time: at}
	t.entries = append(t.entries, e)
	return e
}

// AppendProvisional adds a placeholder assistant entry. An earlier provisional
// entry is dropped first so that at most one exists.
func (t *Transcript) AppendProvisional(text string, at time.Time) Entry {
	t.RemoveProvisional()
	e := Entry{ID: uuid.NewString(), Text: text, Sender: SenderAssistant, Provisional: true, Time: at}
	t.entries = append(t.entries, e)
	return e
}

func (t *Transcript) RemoveProvisional() bool {
	i := slices.IndexFunc(t.entries, func(e Entry) bool { return e.Provisional })
	if i < 0 {
		return false
	}
	t.entries = slices.Delete(t.entries, i, i+1)
	return true
}

func (t *Transcript) HasProvisional() bool {
	return slices.ContainsFunc(t.entries, func(e Entry) bool { return e.Provisional })
}

func (t *Transcript) Len() int {
	return len(t.entries)
}

func (t *Transcript) Entries() []Entry {
	return slices.Clone(t.entries)
}
