package repository

import (
	"database/sql"

	"github.com/lib/pq"

	"marketbrief/internal/model"
)

type WatchlistRepository struct {
	db *sql.DB
}

func NewWatchlistRepository(db *sql.DB) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

func (r *WatchlistRepository) GetActive() ([]model.WatchlistEntry, error) {
	rows, err := r.db.Query(`
		SELECT id, ticker, company_name, industry_keywords, competitor_keywords, upstream_keywords, downstream_keywords, active
		FROM watchlist
		WHERE active = TRUE
		ORDER BY ticker
	`)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.WatchlistEntry
	for rows.Next() {
		entry, err := scanWatchlistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *WatchlistRepository) GetByTicker(ticker string) (*model.WatchlistEntry, error) {
	row := r.db.QueryRow(`
		SELECT id, ticker, company_name, industry_keywords, competitor_keywords, upstream_keywords, downstream_keywords, active
		FROM watchlist
		WHERE ticker = $1
	`, ticker)

	entry, err := scanWatchlistEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return entry, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatchlistEntry(row rowScanner) (*model.WatchlistEntry, error) {
	var e model.WatchlistEntry
	var industry, competitor, upstream, downstream pq.StringArray
	err := row.Scan(&e.ID, &e.Ticker, &e.CompanyName, &industry, &competitor, &upstream, &downstream, &e.Active)
	if err != nil {
		return nil, err
	}
	e.IndustryKeywords = industry
	e.CompetitorKeywords = competitor
	e.UpstreamKeywords = upstream
	e.DownstreamKeywords = downstream
	return &e, nil
}
