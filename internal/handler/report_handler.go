package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"marketbrief/internal/model"
	"marketbrief/internal/pipeline"
	"marketbrief/pkg/news"
)

type ReportStore interface {
	GetLatest(ticker, reportType string) (*model.StoredReport, error)
	GetUsage(reportID int64) ([]model.LLMUsage, error)
	CountReports() (int, error)
}

// ReportQueue enqueues report generation requests for the worker.
type ReportQueue interface {
	Enqueue(ticker, reportType string) error
	Length() (int64, error)
}

// OverviewProvider serves the fundamentals snapshot endpoint.
type OverviewProvider interface {
	CompanyOverview(ticker string) (*news.Overview, error)
}

type ReportHandler struct {
	repository ReportStore
	queue      ReportQueue
	overviews  OverviewProvider
}

func NewReportHandler(repository ReportStore, queue ReportQueue, overviews OverviewProvider) *ReportHandler {
	return &ReportHandler{repository: repository, queue: queue, overviews: overviews}
}

// GetReport serves the latest report for a ticker. The default view removes
// filtered-out and duplicate bullets; ?view=full returns the complete graph
// with filter and dedup annotations for auditing.
func (h *ReportHandler) GetReport(c *gin.Context) {
	ticker := normalizeTicker(c.Param("ticker"))
	reportType := getReportType(c)

	stored, err := h.repository.GetLatest(ticker, reportType)
	if err != nil {
		slog.Error("error fetching report", "ticker", ticker, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if stored == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No report available"})
		return
	}

	report := stored.Report
	if c.Query("view") != "full" {
		report = userFacingView(report)
	}

	c.JSON(http.StatusOK, toReportResponse(stored, report))
}

// userFacingView consolidates duplicates and drops stale bullets.
func userFacingView(report *model.Report) *model.Report {
	out := pipeline.ApplyDeduplication(report)
	for _, name := range model.SectionNames {
		kept := make([]*model.Bullet, 0, len(out.Sections[name]))
		for _, b := range out.Sections[name] {
			if b.FilterStatus == model.FilterFilteredOut {
				continue
			}
			kept = append(kept, b)
		}
		out.Sections[name] = kept
	}
	return out
}

// GetUsage serves the per-phase token accounting of the latest report.
func (h *ReportHandler) GetUsage(c *gin.Context) {
	ticker := normalizeTicker(c.Param("ticker"))
	reportType := getReportType(c)

	stored, err := h.repository.GetLatest(ticker, reportType)
	if err != nil {
		slog.Error("error fetching report", "ticker", ticker, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if stored == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No report available"})
		return
	}

	usage, err := h.repository.GetUsage(stored.ID)
	if err != nil {
		slog.Error("error fetching usage", "report_id", stored.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	res := make([]UsageResponse, 0, len(usage))
	for _, u := range usage {
		res = append(res, toUsageResponse(u))
	}

	c.JSON(http.StatusOK, gin.H{"report_id": stored.ID, "usage": res})
}

// GetSnapshot serves the company fundamentals snapshot.
func (h *ReportHandler) GetSnapshot(c *gin.Context) {
	ticker := normalizeTicker(c.Param("ticker"))

	overview, err := h.overviews.CompanyOverview(ticker)
	if err != nil {
		slog.Error("error fetching overview", "ticker", ticker, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Fundamentals provider error"})
		return
	}

	if overview == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown ticker"})
		return
	}

	c.JSON(http.StatusOK, toSnapshotResponse(overview))
}

// GenerateReport enqueues a generation request for the worker.
func (h *ReportHandler) GenerateReport(c *gin.Context) {
	ticker := normalizeTicker(c.Param("ticker"))
	reportType := getReportType(c)

	if err := h.queue.Enqueue(ticker, reportType); err != nil {
		slog.Error("error enqueueing report request", "ticker", ticker, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Queue error"})
		return
	}

	length, err := h.queue.Length()
	if err != nil {
		slog.Warn("error reading queue length", "error", err)
		length = -1
	}

	c.JSON(http.StatusAccepted, GenerateResponse{
		Ticker:      ticker,
		ReportType:  reportType,
		QueueLength: length,
	})
}

func (h *ReportHandler) GetHealth(c *gin.Context) {
	_, err := h.repository.CountReports()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "disconnected",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
	})
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func getReportType(c *gin.Context) string {
	t := c.Query("type")
	if t == pipeline.ReportWeekly {
		return pipeline.ReportWeekly
	}
	return pipeline.ReportDaily
}
