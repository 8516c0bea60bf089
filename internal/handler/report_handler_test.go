package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"

	"marketbrief/internal/model"
	"marketbrief/pkg/news"
)

type fakeReportStore struct {
	report *model.StoredReport
	usage  []model.LLMUsage
	err    error
}

func (f *fakeReportStore) GetLatest(ticker, reportType string) (*model.StoredReport, error) {
	return f.report, f.err
}

func (f *fakeReportStore) GetUsage(reportID int64) ([]model.LLMUsage, error) {
	return f.usage, f.err
}

func (f *fakeReportStore) CountReports() (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

type fakeQueue struct {
	enqueued []string
	err      error
}

func (f *fakeQueue) Enqueue(ticker, reportType string) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, ticker+":"+reportType)
	return nil
}

func (f *fakeQueue) Length() (int64, error) {
	return int64(len(f.enqueued)), nil
}

type fakeOverviews struct {
	overview *news.Overview
	err      error
}

func (f *fakeOverviews) CompanyOverview(ticker string) (*news.Overview, error) {
	return f.overview, f.err
}

func newTestRouter(store ReportStore, queue ReportQueue, overviews OverviewProvider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewReportHandler(store, queue, overviews)
	r.GET("/tickers/:ticker/report", h.GetReport)
	r.GET("/tickers/:ticker/usage", h.GetUsage)
	r.GET("/tickers/:ticker/snapshot", h.GetSnapshot)
	r.POST("/tickers/:ticker/generate", h.GenerateReport)
	r.GET("/healthz", h.GetHealth)
	return r
}

func storedReportFixture() *model.StoredReport {
	sections := map[string][]*model.Bullet{}
	for _, name := range model.SectionNames {
		sections[name] = []*model.Bullet{}
	}
	sections[model.SectionMajorDevelopments] = []*model.Bullet{
		{
			BulletID: "md_1", TopicLabel: "Expansion", Content: "New plant announced.",
			SourceArticles: []int{0},
			Deduplication:  &model.Deduplication{Status: model.DedupPrimary, Absorbs: []string{"fp_1"}},
		},
		{
			BulletID: "md_2", TopicLabel: "Stale", Content: "Old guidance.",
			SourceArticles: []int{1},
			FilterStatus:   model.FilterFilteredOut, FilterReason: "stale",
		},
	}
	sections[model.SectionFinancialPerformance] = []*model.Bullet{
		{
			BulletID: "fp_1", TopicLabel: "Same expansion", Content: "Plant again.",
			SourceArticles: []int{2},
			Deduplication:  &model.Deduplication{Status: model.DedupDuplicate, AbsorbedBy: "md_1"},
		},
	}
	return &model.StoredReport{
		ID: 7, Ticker: "ACME", ReportType: "daily", ModelUsed: "gemini",
		Report:    &model.Report{Sections: sections},
		CreatedAt: time.Now(),
	}
}

func TestGetReport_DBError(t *testing.T) {
	r := newTestRouter(&fakeReportStore{err: errors.New("DB down")}, &fakeQueue{}, &fakeOverviews{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/tickers/acme/report", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetReport_NotFound(t *testing.T) {
	r := newTestRouter(&fakeReportStore{}, &fakeQueue{}, &fakeOverviews{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/tickers/acme/report", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetReport_UserView(t *testing.T) {
	r := newTestRouter(&fakeReportStore{report: storedReportFixture()}, &fakeQueue{}, &fakeOverviews{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/tickers/acme/report", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var res ReportResponse
	json.Unmarshal(w.Body.Bytes(), &res)

	assert.Equal(t, "ACME", res.Ticker)

	// Stale and duplicate bullets are gone; the primary absorbed the
	// duplicate's source articles.
	md := res.Sections[model.SectionMajorDevelopments]
	assert.Equal(t, 1, len(md))
	assert.Equal(t, "md_1", md[0].BulletID)
	assert.Equal(t, []int{0, 2}, md[0].SourceArticles)
	assert.Equal(t, 0, len(res.Sections[model.SectionFinancialPerformance]))
}

func TestGetReport_FullView(t *testing.T) {
	r := newTestRouter(&fakeReportStore{report: storedReportFixture()}, &fakeQueue{}, &fakeOverviews{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/tickers/acme/report?view=full", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var res ReportResponse
	json.Unmarshal(w.Body.Bytes(), &res)

	md := res.Sections[model.SectionMajorDevelopments]
	assert.Equal(t, 2, len(md))
	assert.Equal(t, "filtered_out", md[1].FilterStatus)
	assert.Equal(t, 1, len(res.Sections[model.SectionFinancialPerformance]))
}

func TestGetUsage(t *testing.T) {
	store := &fakeReportStore{
		report: storedReportFixture(),
		usage: []model.LLMUsage{
			{Phase: "phase1", Model: "gemini", InputTokens: 1000, OutputTokens: 400},
			{Phase: "phase4", Model: "claude", InputTokens: 800, OutputTokens: 300},
		},
	}
	r := newTestRouter(store, &fakeQueue{}, &fakeOverviews{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/tickers/acme/usage", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var res struct {
		ReportID int64           `json:"report_id"`
		Usage    []UsageResponse `json:"usage"`
	}
	json.Unmarshal(w.Body.Bytes(), &res)

	assert.Equal(t, int64(7), res.ReportID)
	assert.Equal(t, 2, len(res.Usage))
	assert.Equal(t, "phase1", res.Usage[0].Phase)
}

func TestGetSnapshot(t *testing.T) {
	overviews := &fakeOverviews{overview: &news.Overview{
		Ticker: "ACME", Name: "Acme Corp", Sector: "Industrials", MarketCap: "12000000000",
	}}
	r := newTestRouter(&fakeReportStore{}, &fakeQueue{}, overviews)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/tickers/acme/snapshot", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var res SnapshotResponse
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "Acme Corp", res.Name)
	assert.Equal(t, "12000000000", res.MarketCap)
}

func TestGetSnapshot_UnknownTicker(t *testing.T) {
	r := newTestRouter(&fakeReportStore{}, &fakeQueue{}, &fakeOverviews{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/tickers/nope/snapshot", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerateReport(t *testing.T) {
	queue := &fakeQueue{}
	r := newTestRouter(&fakeReportStore{}, queue, &fakeOverviews{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/tickers/acme/generate?type=weekly", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"ACME:weekly"}, queue.enqueued)

	var res GenerateResponse
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "ACME", res.Ticker)
	assert.Equal(t, "weekly", res.ReportType)
	assert.Equal(t, int64(1), res.QueueLength)
}

func TestGenerateReport_QueueError(t *testing.T) {
	r := newTestRouter(&fakeReportStore{}, &fakeQueue{err: errors.New("redis down")}, &fakeOverviews{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/tickers/acme/generate", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetHealth(t *testing.T) {
	r := newTestRouter(&fakeReportStore{}, &fakeQueue{}, &fakeOverviews{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	r = newTestRouter(&fakeReportStore{err: errors.New("DB down")}, &fakeQueue{}, &fakeOverviews{})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
