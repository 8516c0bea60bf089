package handler

import (
	"time"

	"marketbrief/internal/model"
	"marketbrief/pkg/news"
)

type ReportResponse struct {
	ID         int64                      `json:"id"`
	Ticker     string                     `json:"ticker"`
	ReportType string                     `json:"report_type"`
	ModelUsed  string                     `json:"model_used"`
	CreatedAt  string                     `json:"created_at"`
	Sections   map[string][]*model.Bullet `json:"sections"`
	Phase4     *model.Phase4              `json:"phase4,omitempty"`
}

func toReportResponse(stored *model.StoredReport, report *model.Report) ReportResponse {
	return ReportResponse{
		ID:         stored.ID,
		Ticker:     stored.Ticker,
		ReportType: stored.ReportType,
		ModelUsed:  stored.ModelUsed,
		CreatedAt:  stored.CreatedAt.Format(time.RFC3339),
		Sections:   report.Sections,
		Phase4:     report.Phase4,
	}
}

type UsageResponse struct {
	Phase        string `json:"phase"`
	Model        string `json:"model"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

func toUsageResponse(u model.LLMUsage) UsageResponse {
	return UsageResponse{
		Phase:        u.Phase,
		Model:        u.Model,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
	}
}

type SnapshotResponse struct {
	Ticker        string `json:"ticker"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Sector        string `json:"sector"`
	Industry      string `json:"industry"`
	MarketCap     string `json:"market_cap"`
	PERatio       string `json:"pe_ratio"`
	EPS           string `json:"eps"`
	DividendYield string `json:"dividend_yield"`
	Week52High    string `json:"week_52_high"`
	Week52Low     string `json:"week_52_low"`
}

func toSnapshotResponse(o *news.Overview) SnapshotResponse {
	return SnapshotResponse{
		Ticker:        o.Ticker,
		Name:          o.Name,
		Description:   o.Description,
		Sector:        o.Sector,
		Industry:      o.Industry,
		MarketCap:     o.MarketCap,
		PERatio:       o.PERatio,
		EPS:           o.EPS,
		DividendYield: o.DividendYield,
		Week52High:    o.Week52High,
		Week52Low:     o.Week52Low,
	}
}

type GenerateResponse struct {
	Ticker      string `json:"ticker"`
	ReportType  string `json:"report_type"`
	QueueLength int64  `json:"queue_length"`
}
