package repository

import (
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"marketbrief/internal/model"
)

// Material 8-K item codes. Everything outside this list is routine
// housekeeping (fiscal-year changes, delistings notices, etc.) that never
// moves a report. Unknown is kept: missing metadata is not evidence of
// immateriality.
var materialItemCodes = []string{
	"1.01", "1.02", "2.01", "2.02", "2.03", "2.05", "2.06",
	"4.01", "4.02", "5.01", "5.02", "5.07", "7.01", "8.01",
	"Unknown",
}

// Exhibit numbers worth reading: press releases (99.x), the filing body
// itself, and merger agreements.
var allowedExhibitPrefixes = []string{"99", "MAIN", "2.1"}

// Exhibit titles that are legal boilerplate regardless of item code.
var blockedTitleFragments = []string{
	"Legal Opinion",
	"Underwriting Agreement",
	"Indenture",
	"Officers' Certificate",
	"Notes Due",
	"Bylaws",
}

// maxExhibitsPerDate bounds how many exhibits of one filing date survive
// when the caller asks for capped results.
const maxExhibitsPerDate = 3

type FilingRepository struct {
	db *sql.DB
}

func NewFilingRepository(db *sql.DB) *FilingRepository {
	return &FilingRepository{db: db}
}

// LatestFiling returns the newest filing of the given type for a ticker, or
// nil when none is on record.
func (r *FilingRepository) LatestFiling(ticker, filingType string) (*model.Filing, error) {
	var f model.Filing
	err := r.db.QueryRow(`
		SELECT id, ticker, filing_type, period, filing_date, company_name, text
		FROM filing
		WHERE ticker = $1 AND filing_type = $2
		ORDER BY filing_date DESC
		LIMIT 1
	`, ticker, filingType).Scan(&f.ID, &f.Ticker, &f.FilingType, &f.Period, &f.FilingDate, &f.CompanyName, &f.Text)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &f, nil
}

// EightKFilings returns material 8-K exhibits for a ticker in the window
// [since, until]. Three layers of noise removal: the item-code allowlist and
// exhibit allowlist in SQL, the title blocklist in SQL, and optionally a
// per-date exhibit cap applied in Go because it needs priority ordering.
func (r *FilingRepository) EightKFilings(ticker string, since, until time.Time, capExhibits bool) ([]model.EightK, error) {
	rows, err := r.db.Query(`
		SELECT e.id, e.ticker, e.filing_date, e.title, e.item_codes, e.exhibit_number, e.summary
		FROM eight_k_exhibit e
		WHERE e.ticker = $1
		  AND e.filing_date >= $2 AND e.filing_date <= $3
		  AND e.item_codes && $4::text[]
		  AND (e.exhibit_number LIKE '99%' OR e.exhibit_number = 'MAIN' OR e.exhibit_number = '2.1')
		  AND NOT (e.title ILIKE ANY($5::text[]))
		ORDER BY e.filing_date ASC, e.exhibit_number ASC
	`, ticker, since, until, pq.Array(materialItemCodes), pq.Array(blockedTitlePatterns()))

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var filings []model.EightK
	for rows.Next() {
		var f model.EightK
		var itemCodes pq.StringArray
		err := rows.Scan(&f.ID, &f.Ticker, &f.FilingDate, &f.Title, &itemCodes, &f.ExhibitNumber, &f.Summary)
		if err != nil {
			return nil, err
		}
		f.ItemCodes = itemCodes
		filings = append(filings, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if capExhibits {
		filings = capExhibitsPerDate(filings)
	}
	return filings, nil
}

func blockedTitlePatterns() []string {
	patterns := make([]string, len(blockedTitleFragments))
	for i, fragment := range blockedTitleFragments {
		patterns[i] = "%" + fragment + "%"
	}
	return patterns
}

// capExhibitsPerDate keeps at most maxExhibitsPerDate exhibits per filing
// date, preferring the filing body, then merger agreements, then press
// releases. A flood of 99.x exhibits on one date is almost always one event
// documented many times over.
func capExhibitsPerDate(filings []model.EightK) []model.EightK {
	byDate := make(map[string][]model.EightK)
	var dates []string
	for _, f := range filings {
		key := f.FilingDate.Format("2006-01-02")
		if _, seen := byDate[key]; !seen {
			dates = append(dates, key)
		}
		byDate[key] = append(byDate[key], f)
	}

	var out []model.EightK
	for _, date := range dates {
		group := byDate[date]
		sort.SliceStable(group, func(i, j int) bool {
			return exhibitPriority(group[i].ExhibitNumber) < exhibitPriority(group[j].ExhibitNumber)
		})
		if len(group) > maxExhibitsPerDate {
			group = group[:maxExhibitsPerDate]
		}
		out = append(out, group...)
	}
	return out
}

func exhibitPriority(exhibitNumber string) int {
	switch {
	case exhibitNumber == "MAIN":
		return 0
	case exhibitNumber == "2.1":
		return 1
	case strings.HasPrefix(exhibitNumber, "99"):
		return 2
	default:
		return 3
	}
}

// SaveFiling upserts a periodic filing, replacing the prior one of the same
// type and period.
func (r *FilingRepository) SaveFiling(f *model.Filing) error {
	return r.db.QueryRow(`
		INSERT INTO filing(ticker, filing_type, period, filing_date, company_name, text)
		VALUES($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ticker, filing_type, period) DO UPDATE
		SET filing_date = EXCLUDED.filing_date, company_name = EXCLUDED.company_name, text = EXCLUDED.text
		RETURNING id
	`, f.Ticker, f.FilingType, f.Period, f.FilingDate, f.CompanyName, f.Text).Scan(&f.ID)
}

// SaveEightK inserts one 8-K exhibit, deduplicating on ticker, filing date
// and exhibit number.
func (r *FilingRepository) SaveEightK(f *model.EightK) (bool, error) {
	var id int64
	err := r.db.QueryRow(`
		INSERT INTO eight_k_exhibit(ticker, filing_date, title, item_codes, exhibit_number, summary)
		VALUES($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ticker, filing_date, exhibit_number) DO NOTHING
		RETURNING id
	`, f.Ticker, f.FilingDate, f.Title, pq.Array(f.ItemCodes), f.ExhibitNumber, f.Summary).Scan(&id)

	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	f.ID = id
	return true, nil
}
