package repository

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"marketbrief/internal/model"
)

func eightK(date string, exhibit string) model.EightK {
	d, _ := time.Parse("2006-01-02", date)
	return model.EightK{Ticker: "TST", FilingDate: d, ExhibitNumber: exhibit}
}

func TestExhibitPriority(t *testing.T) {
	tests := []struct {
		exhibit string
		want    int
	}{
		{"MAIN", 0},
		{"2.1", 1},
		{"99.1", 2},
		{"99.2", 2},
		{"99", 2},
		{"10.1", 3},
		{"3.2", 3},
	}

	for _, tt := range tests {
		assert.Equal(t, exhibitPriority(tt.exhibit), tt.want)
	}
}

func TestCapExhibitsPerDate(t *testing.T) {
	filings := []model.EightK{
		eightK("2026-08-20", "99.1"),
		eightK("2026-08-20", "99.2"),
		eightK("2026-08-20", "MAIN"),
		eightK("2026-08-20", "99.3"),
		eightK("2026-08-20", "2.1"),
		eightK("2026-08-25", "99.1"),
	}

	capped := capExhibitsPerDate(filings)

	assert.Equal(t, len(capped), 4)
	assert.Equal(t, capped[0].ExhibitNumber, "MAIN")
	assert.Equal(t, capped[1].ExhibitNumber, "2.1")
	assert.Equal(t, capped[2].ExhibitNumber, "99.1")
	assert.Equal(t, capped[3].FilingDate.Format("2006-01-02"), "2026-08-25")
}

func TestCapExhibitsPerDateStableWithinPriority(t *testing.T) {
	filings := []model.EightK{
		eightK("2026-08-20", "99.2"),
		eightK("2026-08-20", "99.1"),
		eightK("2026-08-20", "99.3"),
		eightK("2026-08-20", "99.4"),
	}

	capped := capExhibitsPerDate(filings)

	// Same priority keeps arrival order.
	assert.Equal(t, len(capped), 3)
	assert.Equal(t, capped[0].ExhibitNumber, "99.2")
	assert.Equal(t, capped[1].ExhibitNumber, "99.1")
	assert.Equal(t, capped[2].ExhibitNumber, "99.3")
}

func TestCapExhibitsPerDateUnderLimit(t *testing.T) {
	filings := []model.EightK{
		eightK("2026-08-20", "99.1"),
		eightK("2026-08-21", "MAIN"),
	}

	capped := capExhibitsPerDate(filings)

	assert.Equal(t, len(capped), 2)
	assert.Equal(t, capped[0].ExhibitNumber, "99.1")
	assert.Equal(t, capped[1].ExhibitNumber, "MAIN")
}

func TestBlockedTitlePatterns(t *testing.T) {
	patterns := blockedTitlePatterns()

	assert.Equal(t, len(patterns), len(blockedTitleFragments))
	assert.Equal(t, patterns[0], "%Legal Opinion%")
	assert.Equal(t, patterns[len(patterns)-1], "%Bylaws%")
}
