// Package rollup turns flat joined rows into the nested and derived shapes
// returned by the API. Everything here is pure and independent of storage.
package rollup

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"conversation-analytics/backend/internal/models"
)

// Growth returns the day-over-day change in percent, rounded to two decimals.
// With no baseline the result is 100 when there is any activity today and 0 otherwise.
func Growth(today, yesterday int64) float64 {
	if yesterday > 0 {
		return round2(float64(today-yesterday) / float64(yesterday) * 100)
	}
	if today > 0 {
		return 100
	}
	return 0
}

// ConversionRate returns converted/total in percent, 0 when total is 0
func ConversionRate(converted, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return round2(float64(converted) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// LeadFlags derives the transferred and discarded flags from the nullable
// join ids. The two are independent and may both be set.
func LeadFlags(transferID, discardID *int64) (transferred, discarded bool) {
	return transferID != nil, discardID != nil
}

// LeadStatusOf collapses the flags into a single label; transferred wins.
func LeadStatusOf(transferred, discarded bool) models.LeadStatus {
	switch {
	case transferred:
		return models.LeadTransferred
	case discarded:
		return models.LeadDiscarded
	}
	return models.LeadPending
}

// LastActivity is the contact ordering key: the later of its latest message
// and its own creation time.
func LastActivity(lastMessageAt *time.Time, createdAt time.Time) time.Time {
	if lastMessageAt != nil && lastMessageAt.After(createdAt) {
		return *lastMessageAt
	}
	return createdAt
}

// Summary shortens message content for list views, cutting on a rune boundary
func Summary(content string, max int) string {
	content = strings.TrimSpace(content)
	if max <= 0 || utf8.RuneCountInString(content) <= max {
		return content
	}
	runes := []rune(content)
	return strings.TrimSpace(string(runes[:max])) + "..."
}

// KnowledgeRow is one knowledge entry joined with its session
type KnowledgeRow struct {
	ID               int64                `json:"id" db:"id"`
	SessionID        int64                `json:"session_id" db:"session_id"`
	ContactID        int64                `json:"contact_id" db:"contact_id"`
	Key              string               `json:"key" db:"key"`
	Value            string               `json:"value" db:"value"`
	CreatedAt        time.Time            `json:"created_at" db:"created_at"`
	SessionStatus    models.SessionStatus `json:"-" db:"session_status"`
	SessionCreatedAt time.Time            `json:"-" db:"session_created_at"`
}

// KnowledgeEntry is an entry nested under its session
type KnowledgeEntry struct {
	ID        int64     `json:"id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// KnowledgeGroup is every entry captured during one session
type KnowledgeGroup struct {
	SessionID        int64                `json:"session_id"`
	ContactID        int64                `json:"contact_id"`
	SessionStatus    models.SessionStatus `json:"session_status"`
	SessionCreatedAt time.Time            `json:"session_created_at"`
	LastEntryAt      time.Time            `json:"last_entry_at"`
	Entries          []KnowledgeEntry     `json:"entries"`
}

// GroupKnowledge groups rows by session. Entries keep their input order;
// sessions are ordered by their most recent entry, newest first, with the
// higher session id first on ties.
func GroupKnowledge(rows []KnowledgeRow) []KnowledgeGroup {
	index := make(map[int64]int)
	groups := make([]KnowledgeGroup, 0)

	for _, r := range rows {
		i, ok := index[r.SessionID]
		if !ok {
			i = len(groups)
			index[r.SessionID] = i
			groups = append(groups, KnowledgeGroup{
				SessionID:        r.SessionID,
				ContactID:        r.ContactID,
				SessionStatus:    r.SessionStatus,
				SessionCreatedAt: r.SessionCreatedAt,
				Entries:          []KnowledgeEntry{},
			})
		}
		g := &groups[i]
		g.Entries = append(g.Entries, KnowledgeEntry{ID: r.ID, Key: r.Key, Value: r.Value, CreatedAt: r.CreatedAt})
		if r.CreatedAt.After(g.LastEntryAt) {
			g.LastEntryAt = r.CreatedAt
		}
	}

	sort.SliceStable(groups, func(a, b int) bool {
		if !groups[a].LastEntryAt.Equal(groups[b].LastEntryAt) {
			return groups[a].LastEntryAt.After(groups[b].LastEntryAt)
		}
		return groups[a].SessionID > groups[b].SessionID
	})
	return groups
}

// SeriesPoint is one bucket of a zero-filled time series
type SeriesPoint struct {
	Period string `json:"period"`
	Count  int64  `json:"count"`
}

// MonthKey is the bucket label of a month
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// DayKey is the bucket label of a day
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// MonthStart truncates t to the first instant of its month
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// MonthlySeries returns one point per month for the months ending with the
// month of end, oldest first, using 0 for months absent from counts.
func MonthlySeries(end time.Time, months int, counts map[string]int64) []SeriesPoint {
	first := MonthStart(end).AddDate(0, -(months - 1), 0)
	out := make([]SeriesPoint, 0, months)
	for i := 0; i < months; i++ {
		key := MonthKey(first.AddDate(0, i, 0))
		out = append(out, SeriesPoint{Period: key, Count: counts[key]})
	}
	return out
}

// DailySeries returns one point per day from start to end inclusive,
// using 0 for days absent from counts.
func DailySeries(start, end time.Time, counts map[string]int64) []SeriesPoint {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	out := make([]SeriesPoint, 0)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := DayKey(d)
		out = append(out, SeriesPoint{Period: key, Count: counts[key]})
	}
	return out
}
