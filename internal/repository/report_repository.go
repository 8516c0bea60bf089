package repository

import (
	"database/sql"
	"encoding/json"

	"marketbrief/internal/model"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// SaveReport persists a completed report and its per-phase usage rows in one
// transaction.
func (r *ReportRepository) SaveReport(stored *model.StoredReport, usage []model.LLMUsage) error {
	payload, err := json.Marshal(stored.Report)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRow(`
		INSERT INTO report(ticker, report_type, payload, model_used)
		VALUES($1, $2, $3, $4)
		RETURNING id, created_at
	`, stored.Ticker, stored.ReportType, payload, stored.ModelUsed).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return err
	}

	for _, u := range usage {
		_, err = tx.Exec(`
			INSERT INTO llm_usage(report_id, ticker, phase, model, input_tokens, output_tokens)
			VALUES($1, $2, $3, $4, $5, $6)
		`, stored.ID, u.Ticker, u.Phase, u.Model, u.InputTokens, u.OutputTokens)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetLatest returns a ticker's most recent report of the given type, or nil
// when none exists.
func (r *ReportRepository) GetLatest(ticker, reportType string) (*model.StoredReport, error) {
	var stored model.StoredReport
	var payload []byte
	err := r.db.QueryRow(`
		SELECT id, ticker, report_type, payload, model_used, created_at
		FROM report
		WHERE ticker = $1 AND report_type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, ticker, reportType).Scan(&stored.ID, &stored.Ticker, &stored.ReportType, &payload, &stored.ModelUsed, &stored.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &stored.Report); err != nil {
		return nil, err
	}

	return &stored, nil
}

func (r *ReportRepository) CountReports() (int, error) {
	var total int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM report`).Scan(&total)
	return total, err
}

// GetUsage returns the usage rows billed to one report.
func (r *ReportRepository) GetUsage(reportID int64) ([]model.LLMUsage, error) {
	rows, err := r.db.Query(`
		SELECT id, ticker, phase, model, input_tokens, output_tokens, created_at
		FROM llm_usage
		WHERE report_id = $1
		ORDER BY id ASC
	`, reportID)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usage []model.LLMUsage
	for rows.Next() {
		var u model.LLMUsage
		err := rows.Scan(&u.ID, &u.Ticker, &u.Phase, &u.Model, &u.InputTokens, &u.OutputTokens, &u.CreatedAt)
		if err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return usage, nil
}
