package model

import "time"

// Filing is a stored SEC filing or earnings call transcript for a ticker.
type Filing struct {
	ID          int64
	Ticker      string
	FilingType  string
	Period      string
	FilingDate  time.Time
	CompanyName string
	Text        string
}

// EightK is one 8-K document row, one per exhibit. ItemCodes holds the 8-K
// item numbers the filing reports under, "Unknown" when the metadata was
// missing.
type EightK struct {
	ID            int64
	Ticker        string
	FilingDate    time.Time
	Title         string
	ItemCodes     []string
	ExhibitNumber string
	Summary       string
}
