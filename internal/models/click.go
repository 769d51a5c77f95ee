package models

import "time"

// Visit carries the request attributes recorded for a single redirect.
type Visit struct {
	IP        string
	UserAgent string
	Referrer  string
}

// ClickEvent is the payload published to the event log for every successful
// redirect. It is never mutated after creation.
type ClickEvent struct {
	ShortCode string    `json:"short_code"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referrer  string    `json:"referrer,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TrendingURL is one entry of the global click ranking.
type TrendingURL struct {
	ShortCode string `json:"short_code"`
	Clicks    int64  `json:"clicks"`
}

// DailyClicks is the click count for a single UTC calendar date.
type DailyClicks struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}
