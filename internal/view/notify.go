package view

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// AlertClass maps a level onto its bootstrap alert modifier.
func (l Level) AlertClass() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "danger"
	case LevelWarning:
		return "warning"
	default:
		return "info"
	}
}

type Notification struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Text    string    `json:"text"`
	Created time.Time `json:"created"`
	Expires time.Time `json:"expires"`
}

// Notifications holds transient user-facing messages that dismiss themselves
// after a fixed time to live.
type Notifications struct {
	ttl   time.Duration
	items []Notification
}

func NewNotifications(ttl time.Duration) *Notifications {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &Notifications{ttl: ttl}
}

func (n *Notifications) Add(level Level, text string, now time.Time) Notification {
	item := Notification{
		ID:      uuid.NewString(),
		Level:   level,
		Text:    text,
		Created: now,
		Expires: now.Add(n.ttl),
	}
	n.items = append(n.items, item)
	return item
}

func (n *Notifications) Dismiss(id string) bool {
	i := slices.IndexFunc(n.items, func(item Notification) bool { return item.ID == id })
	if i < 0 {
		return false
	}
	n.items = slices.Delete(n.items, i, i+1)
	return true
}

// Expire removes every notification whose deadline has passed and reports
// whether anything changed.
func (n *Notifications) Expire(now time.Time) bool {
	before := len(n.items)
	n.items = slices.DeleteFunc(n.items, func(item Notification) bool {
		return !now.Before(item.Expires)
	})
	return len(n.items) != before
}

// NextExpiry returns the earliest deadline among live notifications.
func (n *Notifications) NextExpiry() (time.Time, bool) {
	if len(n.items) == 0 {
		return time.Time{}, false
	}
	next := n.items[0].Expires
	for _, item := range n.items[1:] {
		if item.Expires.Before(next) {
			next = item.Expires
		}
	}
	return next, true
}

func (n *Notifications) Items() []Notification {
	return slices.Clone(n.items)
}
