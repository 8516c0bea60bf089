package news

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type AlphaVantageClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewAlphaVantageClient(apiKey string) *AlphaVantageClient {
	return &AlphaVantageClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *AlphaVantageClient) Name() string {
	return "AlphaVantage"
}

// Overview is a company fundamentals snapshot. Numeric fields stay strings:
// the upstream API serves them as strings and the API layer passes them
// through untouched.
type Overview struct {
	Ticker        string
	Name          string
	Description   string
	Sector        string
	Industry      string
	MarketCap     string
	PERatio       string
	EPS           string
	DividendYield string
	Week52High    string
	Week52Low     string
}

// CompanyOverview fetches the fundamentals snapshot for one ticker. A
// response without a symbol (unknown ticker, rate limit notice) returns
// nil, nil.
func (c *AlphaVantageClient) CompanyOverview(ticker string) (*Overview, error) {
	url := fmt.Sprintf(
		"https://www.alphavantage.co/query?function=OVERVIEW&symbol=%s&apikey=%s",
		ticker, c.apiKey,
	)

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("alphavantage overview: %w", err)
	}
	defer resp.Body.Close()

	var raw avOverview
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("alphavantage decode: %w", err)
	}

	if raw.Symbol == "" {
		return nil, nil
	}

	return &Overview{
		Ticker:        raw.Symbol,
		Name:          raw.Name,
		Description:   raw.Description,
		Sector:        raw.Sector,
		Industry:      raw.Industry,
		MarketCap:     raw.MarketCapitalization,
		PERatio:       raw.PERatio,
		EPS:           raw.EPS,
		DividendYield: raw.DividendYield,
		Week52High:    raw.Week52High,
		Week52Low:     raw.Week52Low,
	}, nil
}

type avOverview struct {
	Symbol               string `json:"Symbol"`
	Name                 string `json:"Name"`
	Description          string `json:"Description"`
	Sector               string `json:"Sector"`
	Industry             string `json:"Industry"`
	MarketCapitalization string `json:"MarketCapitalization"`
	PERatio              string `json:"PERatio"`
	EPS                  string `json:"EPS"`
	DividendYield        string `json:"DividendYield"`
	Week52High           string `json:"52WeekHigh"`
	Week52Low            string `json:"52WeekLow"`
}
