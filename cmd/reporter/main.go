package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"marketbrief/db"
	"marketbrief/internal/model"
	"marketbrief/internal/pipeline"
	"marketbrief/internal/repository"
	"marketbrief/pkg/llm"
)

// Article lookback windows per report type.
const (
	dailyWindow  = 24 * time.Hour
	weeklyWindow = 7 * 24 * time.Hour

	runTimeout = 30 * time.Minute
)

func main() {

	godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	err := db.Connect()
	if err != nil {
		log.Fatalf("error connecting to DB: %v", err)
	}
	defer db.Close()

	err = db.ConnectRedis()
	if err != nil {
		log.Fatalf("error connecting to Redis: %v", err)
	}
	defer db.CloseRedis()

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		log.Fatal("GEMINI_API_KEY is not set")
	}
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	if anthropicKey == "" {
		log.Fatal("ANTHROPIC_API_KEY is not set")
	}

	gemini, err := llm.NewGeminiClient(context.Background(), geminiKey, 3*time.Minute)
	if err != nil {
		log.Fatalf("error creating gemini client: %v", err)
	}
	claude := llm.NewAnthropicClient(anthropicKey)

	articleRepo := repository.NewArticleRepository(db.DB)
	filingRepo := repository.NewFilingRepository(db.DB)
	reportRepo := repository.NewReportRepository(db.DB)
	watchlistRepo := repository.NewWatchlistRepository(db.DB)

	slog.Info("report worker started", "queue", db.ReportQueueKey)

	for {
		payload, err := db.PopFromQueue(db.ReportQueueKey, 0)
		if err != nil {
			slog.Error("error popping from Redis queue", "error", err)
			break
		}

		var request model.ReportRequest
		if err := json.Unmarshal([]byte(payload), &request); err != nil {
			slog.Error("invalid report request in queue", "payload", payload, "error", err)
			db.PushToQueue(db.DeadLetterKey, payload)
			continue
		}

		if err := generate(gemini, claude, articleRepo, filingRepo, reportRepo, watchlistRepo, request); err != nil {
			slog.Error("report generation failed", "ticker", request.Ticker, "error", err)
			db.PushToQueue(db.DeadLetterKey, payload)
		}
	}
}

func generate(gemini, claude llm.Gateway, articleRepo *repository.ArticleRepository, filingRepo *repository.FilingRepository, reportRepo *repository.ReportRepository, watchlistRepo *repository.WatchlistRepository, request model.ReportRequest) error {
	companyName := ""
	entry, err := watchlistRepo.GetByTicker(request.Ticker)
	if err != nil {
		slog.Warn("error loading watchlist entry, continuing without company name", "ticker", request.Ticker, "error", err)
	} else if entry != nil {
		companyName = entry.CompanyName
	}

	window := dailyWindow
	if request.ReportType == pipeline.ReportWeekly {
		window = weeklyWindow
	}

	articles, err := articleRepo.GetCategorized(request.Ticker, time.Now().Add(-window))
	if err != nil {
		return err
	}

	p := pipeline.New(gemini, claude, filingRepo, request.ReportType)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	result, err := p.Run(ctx, request.Ticker, companyName, articles)
	if err != nil {
		return err
	}

	stored := &model.StoredReport{
		Ticker:     request.Ticker,
		ReportType: request.ReportType,
		Report:     result.Report,
		ModelUsed:  primaryModel(result.Usage),
	}
	if err := reportRepo.SaveReport(stored, result.Usage); err != nil {
		return err
	}

	slog.Info("report generated", "ticker", request.Ticker, "report_type", request.ReportType, "report_id", stored.ID)
	return nil
}

// primaryModel is the model that produced the theme extraction, recorded as
// the report's headline model.
func primaryModel(usage []model.LLMUsage) string {
	for _, u := range usage {
		if u.Phase == "phase1" {
			return u.Model
		}
	}
	return "unknown"
}
