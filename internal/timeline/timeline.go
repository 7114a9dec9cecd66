// Package timeline decides how a sorted message list is presented: which
// messages repeat the sender header and where calendar date separators go.
package timeline

import (
	"time"

	"chatsync/internal/models"
)

// DefaultWindow is the grouping window used when none is configured.
const DefaultWindow = 3 * time.Minute

// Entry is one message in a rendered timeline.
type Entry struct {
	Message       models.Message `json:"message"`
	ShowHeader    bool           `json:"showHeader"`    // false when grouped with the previous message
	DateSeparator bool           `json:"dateSeparator"` // a new calendar day starts here
	Date          time.Time      `json:"date"`          // calendar day in the timeline's location
}

// IsGrouped reports whether cur may be rendered without a header after prev:
// same sender id and at most window apart.
func IsGrouped(prev, cur models.Message, window time.Duration) bool {
	if prev.Sender.ID == "" || prev.Sender.ID != cur.Sender.ID {
		return false
	}
	gap := cur.CreatedAt.Sub(prev.CreatedAt)
	if gap < 0 {
		gap = -gap
	}
	return gap <= window
}

// NeedsDateSeparator reports whether prev and cur fall on different calendar
// dates in loc.
func NeedsDateSeparator(prev, cur models.Message, loc *time.Location) bool {
	return !sameDay(prev.CreatedAt.In(loc), cur.CreatedAt.In(loc))
}

// Build renders msgs, which must already be in display order. A date
// separator always breaks a group.
func Build(msgs []models.Message, window time.Duration, loc *time.Location) []Entry {
	if window <= 0 {
		window = DefaultWindow
	}
	if loc == nil {
		loc = time.Local
	}
	out := make([]Entry, 0, len(msgs))
	for i, m := range msgs {
		local := m.CreatedAt.In(loc)
		e := Entry{
			Message:       m,
			ShowHeader:    true,
			DateSeparator: i == 0,
			Date:          time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc),
		}
		if i > 0 {
			prev := msgs[i-1]
			e.DateSeparator = NeedsDateSeparator(prev, m, loc)
			e.ShowHeader = e.DateSeparator || !IsGrouped(prev, m, window)
		}
		out = append(out, e)
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
