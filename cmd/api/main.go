package main

import (
	"encoding/json"
	"log"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"marketbrief/db"
	"marketbrief/internal/handler"
	"marketbrief/internal/model"
	"marketbrief/internal/repository"
	"marketbrief/pkg/news"
)

// redisReportQueue adapts the shared Redis queue to the handler interface.
type redisReportQueue struct{}

func (redisReportQueue) Enqueue(ticker, reportType string) error {
	payload, err := json.Marshal(model.ReportRequest{Ticker: ticker, ReportType: reportType})
	if err != nil {
		return err
	}
	return db.PushToQueue(db.ReportQueueKey, string(payload))
}

func (redisReportQueue) Length() (int64, error) {
	return db.GetQueueLength(db.ReportQueueKey)
}

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

	reportRepo := repository.NewReportRepository(db.DB)
	overviews := news.NewAlphaVantageClient(os.Getenv("ALPHA_VANTAGE_API_KEY"))
	reportHandler := handler.NewReportHandler(reportRepo, redisReportQueue{}, overviews)

	r := gin.Default()

	allowedOrigins := []string{"http://localhost:3000"}

	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	slog.Info("AllowOrigins URL:", "urls", allowedOrigins)

	r.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))

	r.GET("/tickers/:ticker/report", reportHandler.GetReport)
	r.GET("/tickers/:ticker/usage", reportHandler.GetUsage)
	r.GET("/tickers/:ticker/snapshot", reportHandler.GetSnapshot)
	r.POST("/tickers/:ticker/generate", reportHandler.GenerateReport)
	r.GET("/healthz", reportHandler.GetHealth)

	err = r.Run(":8080")
	if err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}
