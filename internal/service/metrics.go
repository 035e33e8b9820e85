package service

import (
	"context"
	"time"

	"conversation-analytics/backend/internal/rollup"
	apperrors "conversation-analytics/backend/pkg/errors"
	"conversation-analytics/backend/pkg/query"

	"golang.org/x/sync/errgroup"
)

const (
	defaultMetricsDays   = 30
	DefaultHistoryMonths = 6
	MaxHistoryMonths     = 24
	// MaxOverviewDays bounds the daily series of an overview
	MaxOverviewDays = 366
)

// PeriodCounts are activity counts for one calendar period
type PeriodCounts struct {
	Conversations int64 `json:"conversations" db:"conversations"`
	Messages      int64 `json:"messages" db:"messages"`
	Leads         int64 `json:"leads" db:"leads"`
}

// GrowthRates compare today against yesterday, in percent
type GrowthRates struct {
	Conversations float64 `json:"conversations"`
	Messages      float64 `json:"messages"`
	Leads         float64 `json:"leads"`
}

type rangeTotals struct {
	Conversations       int64 `db:"conversations"`
	ActiveConversations int64 `db:"active_conversations"`
	Contacts            int64 `db:"contacts"`
	Messages            int64 `db:"messages"`
	Leads               int64 `db:"leads"`
	Transferred         int64 `db:"transferred"`
	Discarded           int64 `db:"discarded"`
}

type periodRow struct {
	TodayConversations     int64 `db:"today_conversations"`
	TodayMessages          int64 `db:"today_messages"`
	TodayLeads             int64 `db:"today_leads"`
	YesterdayConversations int64 `db:"yesterday_conversations"`
	YesterdayMessages      int64 `db:"yesterday_messages"`
	YesterdayLeads         int64 `db:"yesterday_leads"`
	MonthConversations     int64 `db:"month_conversations"`
	MonthMessages          int64 `db:"month_messages"`
	MonthLeads             int64 `db:"month_leads"`
}

type seriesRow struct {
	Period string `db:"period"`
	Count  int64  `db:"count"`
}

// Overview is the dashboard summary for a date range
type Overview struct {
	StartDate           string               `json:"start_date"`
	EndDate             string               `json:"end_date"`
	TotalConversations  int64                `json:"total_conversations"`
	ActiveConversations int64                `json:"active_conversations"`
	TotalContacts       int64                `json:"total_contacts"`
	TotalMessages       int64                `json:"total_messages"`
	TotalLeads          int64                `json:"total_leads"`
	TransferredLeads    int64                `json:"transferred_leads"`
	DiscardedLeads      int64                `json:"discarded_leads"`
	ConversionRate      float64              `json:"conversion_rate"`
	Today               PeriodCounts         `json:"today"`
	Yesterday           PeriodCounts         `json:"yesterday"`
	ThisMonth           PeriodCounts         `json:"this_month"`
	Growth              GrowthRates          `json:"growth"`
	Daily               []rollup.SeriesPoint `json:"daily"`
}

// Historical holds zero-filled monthly series, oldest month first
type Historical struct {
	Months        int                  `json:"months"`
	Conversations []rollup.SeriesPoint `json:"conversations"`
	Messages      []rollup.SeriesPoint `json:"messages"`
	Leads         []rollup.SeriesPoint `json:"leads"`
	Transfers     []rollup.SeriesPoint `json:"transfers"`
}

// Realtime is a point-in-time snapshot of live activity
type Realtime struct {
	ActiveConversations int64     `json:"active_conversations" db:"active_conversations"`
	MessagesLastHour    int64     `json:"messages_last_hour" db:"messages_last_hour"`
	ConversationsToday  int64     `json:"conversations_today" db:"conversations_today"`
	LeadsToday          int64     `json:"leads_today" db:"leads_today"`
	Timestamp           time.Time `json:"timestamp" db:"-"`
}

// MetricsService computes tenant activity aggregates. All periods are UTC.
type MetricsService struct {
	db  query.Querier
	now func() time.Time
}

// NewMetricsService creates a metrics service
func NewMetricsService(db query.Querier) *MetricsService {
	return &MetricsService{db: db, now: time.Now}
}

func (s *MetricsService) today() time.Time {
	n := s.now().UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// counted is one named scalar subquery of a multi-count statement
type counted struct {
	name string
	expr query.Expr
}

// countSQL renders "(SELECT sel FROM from WHERE scope = ? AND ts >= ? AND ts < ? extra)"
func countSQL(sel, from, scope, ts, extra string, companyID int64, r DateRange) query.Expr {
	return query.Raw("(SELECT "+sel+" FROM "+from+" WHERE "+scope+" = ? AND "+ts+" >= ? AND "+ts+" < ?"+extra+")",
		companyID, r.From, r.To)
}

func scalars(cs ...counted) []query.Expr {
	parts := []query.Expr{{SQL: "SELECT "}}
	for i, c := range cs {
		if i > 0 {
			parts = append(parts, query.Expr{SQL: ", "})
		}
		parts = append(parts, c.expr, query.Expr{SQL: " AS " + c.name})
	}
	return parts
}

func sessionsIn(companyID int64, r DateRange, extra string) query.Expr {
	return countSQL("COUNT(*)", "sessions s", "s.company_id", "s.created_at", extra, companyID, r)
}

func messagesIn(companyID int64, r DateRange) query.Expr {
	return countSQL("COUNT(*)", "conversations m JOIN sessions s ON s.id = m.session_id",
		"s.company_id", "m.created_at", "", companyID, r)
}

func leadsIn(companyID int64, r DateRange) query.Expr {
	return countSQL("COUNT(*)", "leads l", "l.company_id", "l.created_at", "", companyID, r)
}

// Overview summarises activity in r. A zero range means the last 30 days
// including today.
func (s *MetricsService) Overview(ctx context.Context, companyID int64, r DateRange) (Overview, error) {
	today := s.today()
	if r.From.IsZero() {
		r.From = today.AddDate(0, 0, -(defaultMetricsDays - 1))
	}
	if r.To.IsZero() {
		r.To = today.AddDate(0, 0, 1)
	}
	if r.To.After(r.From.AddDate(0, 0, MaxOverviewDays)) {
		return Overview{}, apperrors.BadRequestWithDetails(apperrors.CodeInvalidDateRange,
			"date range must not exceed 366 days", map[string]any{
				"start_date": rollup.DayKey(r.From),
				"end_date":   rollup.DayKey(r.To.AddDate(0, 0, -1)),
				"max_days":   MaxOverviewDays,
			})
	}

	var (
		totals  rangeTotals
		periods periodRow
		daily   []seriesRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = query.One[rangeTotals](gctx, s.db, scalars(
			counted{"conversations", sessionsIn(companyID, r, "")},
			counted{"active_conversations", sessionsIn(companyID, r, " AND s.status IN (0, 1, 2)")},
			counted{"contacts", countSQL("COUNT(DISTINCT s.contact_id)", "sessions s", "s.company_id", "s.created_at", "", companyID, r)},
			counted{"messages", messagesIn(companyID, r)},
			counted{"leads", leadsIn(companyID, r)},
			counted{"transferred", countSQL("COUNT(*)", "leads l JOIN lead_transfers lt ON lt.lead_id = l.id",
				"l.company_id", "l.created_at", "", companyID, r)},
			counted{"discarded", countSQL("COUNT(*)", "leads l JOIN lead_discards ld ON ld.lead_id = l.id",
				"l.company_id", "l.created_at", "", companyID, r)},
		)...)
		return err
	})
	g.Go(func() (err error) {
		day := DateRange{From: today, To: today.AddDate(0, 0, 1)}
		yesterday := DateRange{From: today.AddDate(0, 0, -1), To: today}
		month := DateRange{From: rollup.MonthStart(today), To: rollup.MonthStart(today).AddDate(0, 1, 0)}
		periods, err = query.One[periodRow](gctx, s.db, scalars(
			counted{"today_conversations", sessionsIn(companyID, day, "")},
			counted{"today_messages", messagesIn(companyID, day)},
			counted{"today_leads", leadsIn(companyID, day)},
			counted{"yesterday_conversations", sessionsIn(companyID, yesterday, "")},
			counted{"yesterday_messages", messagesIn(companyID, yesterday)},
			counted{"yesterday_leads", leadsIn(companyID, yesterday)},
			counted{"month_conversations", sessionsIn(companyID, month, "")},
			counted{"month_messages", messagesIn(companyID, month)},
			counted{"month_leads", leadsIn(companyID, month)},
		)...)
		return err
	})
	g.Go(func() (err error) {
		daily, err = s.series(gctx, "YYYY-MM-DD", "sessions s", "s.company_id", "s.created_at", companyID, r)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, storageErr(err)
	}

	last := r.To.AddDate(0, 0, -1)
	return Overview{
		StartDate:           rollup.DayKey(r.From),
		EndDate:             rollup.DayKey(last),
		TotalConversations:  totals.Conversations,
		ActiveConversations: totals.ActiveConversations,
		TotalContacts:       totals.Contacts,
		TotalMessages:       totals.Messages,
		TotalLeads:          totals.Leads,
		TransferredLeads:    totals.Transferred,
		DiscardedLeads:      totals.Discarded,
		ConversionRate:      rollup.ConversionRate(totals.Transferred, totals.Leads),
		Today:               PeriodCounts{periods.TodayConversations, periods.TodayMessages, periods.TodayLeads},
		Yesterday:           PeriodCounts{periods.YesterdayConversations, periods.YesterdayMessages, periods.YesterdayLeads},
		ThisMonth:           PeriodCounts{periods.MonthConversations, periods.MonthMessages, periods.MonthLeads},
		Growth: GrowthRates{
			Conversations: rollup.Growth(periods.TodayConversations, periods.YesterdayConversations),
			Messages:      rollup.Growth(periods.TodayMessages, periods.YesterdayMessages),
			Leads:         rollup.Growth(periods.TodayLeads, periods.YesterdayLeads),
		},
		Daily: rollup.DailySeries(r.From, last, countsByPeriod(daily)),
	}, nil
}

// ClampMonths bounds a requested history length to [1, MaxHistoryMonths]
func ClampMonths(months int) int {
	switch {
	case months < 1:
		return 1
	case months > MaxHistoryMonths:
		return MaxHistoryMonths
	}
	return months
}

// Historical returns monthly series ending with the current month
func (s *MetricsService) Historical(ctx context.Context, companyID int64, months int) (Historical, error) {
	months = ClampMonths(months)
	current := rollup.MonthStart(s.today())
	r := DateRange{From: current.AddDate(0, -(months - 1), 0), To: current.AddDate(0, 1, 0)}

	var sessions, messages, leads, transfers []seriesRow
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sessions, err = s.series(gctx, "YYYY-MM", "sessions s", "s.company_id", "s.created_at", companyID, r)
		return err
	})
	g.Go(func() (err error) {
		messages, err = s.series(gctx, "YYYY-MM", "conversations m JOIN sessions s ON s.id = m.session_id",
			"s.company_id", "m.created_at", companyID, r)
		return err
	})
	g.Go(func() (err error) {
		leads, err = s.series(gctx, "YYYY-MM", "leads l", "l.company_id", "l.created_at", companyID, r)
		return err
	})
	g.Go(func() (err error) {
		transfers, err = s.series(gctx, "YYYY-MM", "lead_transfers lt JOIN leads l ON l.id = lt.lead_id",
			"l.company_id", "lt.created_at", companyID, r)
		return err
	})
	if err := g.Wait(); err != nil {
		return Historical{}, storageErr(err)
	}

	return Historical{
		Months:        months,
		Conversations: rollup.MonthlySeries(current, months, countsByPeriod(sessions)),
		Messages:      rollup.MonthlySeries(current, months, countsByPeriod(messages)),
		Leads:         rollup.MonthlySeries(current, months, countsByPeriod(leads)),
		Transfers:     rollup.MonthlySeries(current, months, countsByPeriod(transfers)),
	}, nil
}

// Realtime returns live counters for the tenant
func (s *MetricsService) Realtime(ctx context.Context, companyID int64) (Realtime, error) {
	now := s.now().UTC()
	today := s.today()
	day := DateRange{From: today, To: today.AddDate(0, 0, 1)}
	hour := DateRange{From: now.Add(-time.Hour), To: now}

	out, err := query.One[Realtime](ctx, s.db, scalars(
		counted{"active_conversations", query.Raw(
			"(SELECT COUNT(*) FROM sessions s WHERE s.company_id = ? AND s.status IN (0, 1, 2))", companyID)},
		counted{"messages_last_hour", messagesIn(companyID, hour)},
		counted{"conversations_today", sessionsIn(companyID, day, "")},
		counted{"leads_today", leadsIn(companyID, day)},
	)...)
	if err != nil {
		return Realtime{}, storageErr(err)
	}
	out.Timestamp = now
	return out, nil
}

func (s *MetricsService) series(ctx context.Context, format, from, scope, ts string, companyID int64, r DateRange) ([]seriesRow, error) {
	bucket := "to_char(" + ts + ", '" + format + "')"
	return query.List[seriesRow](ctx, s.db,
		query.Raw("SELECT "+bucket+" AS period, COUNT(*) AS count FROM "+from+
			" WHERE "+scope+" = ? AND "+ts+" >= ? AND "+ts+" < ? GROUP BY 1 ORDER BY 1",
			companyID, r.From, r.To))
}

func countsByPeriod(rows []seriesRow) map[string]int64 {
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Period] = r.Count
	}
	return out
}
