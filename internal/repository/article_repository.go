package repository

import (
	"database/sql"
	"time"

	"marketbrief/internal/model"
)

type ArticleRepository struct {
	db *sql.DB
}

func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// Save inserts a fetched article, deduplicating on URL. Returns false when
// the article was already on record.
func (r *ArticleRepository) Save(article *model.Article) (bool, error) {
	var id int64
	err := r.db.QueryRow(`
		INSERT INTO article(ticker, category, title, detail, url, domain, search_keyword, published_at, external_id, status)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (url) DO NOTHING
		RETURNING id
	`, article.Ticker, article.Category, article.Title, article.Detail, article.URL, article.Domain,
		article.SearchKeyword, article.PublishedAt, article.ExternalID, model.StatusPending).Scan(&id)

	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	article.ID = id
	return true, nil
}

func (r *ArticleRepository) GetPending(limit int) ([]model.Article, error) {
	rows, err := r.db.Query(`
		SELECT id, ticker, category, title, detail, url, domain, search_keyword, published_at, fetched_at, external_id, status
		FROM article
		WHERE status = $1
		ORDER BY fetched_at ASC
		LIMIT $2
	`, model.StatusPending, limit)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []model.Article
	for rows.Next() {
		var a model.Article
		err := rows.Scan(&a.ID, &a.Ticker, &a.Category, &a.Title, &a.Detail, &a.URL, &a.Domain,
			&a.SearchKeyword, &a.PublishedAt, &a.FetchedAt, &a.ExternalID, &a.Status)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return articles, nil
}

// SaveSummary records a completed summarization and flips the article to
// summarized in one statement.
func (r *ArticleRepository) SaveSummary(id int64, summary string, quality float64, modelUsed string) error {
	_, err := r.db.Exec(`
		UPDATE article
		SET ai_summary = $1, quality_score = $2, model_used = $3, status = $4
		WHERE id = $5
	`, summary, quality, modelUsed, model.StatusSummarized, id)
	return err
}

func (r *ArticleRepository) UpdateStatus(id int64, status string) error {
	_, err := r.db.Exec(`
		UPDATE article SET status = $1 WHERE id = $2
	`, status, id)
	return err
}

// GetCategorized loads a ticker's summarized articles published since the
// given time, grouped by category for the report pipeline.
func (r *ArticleRepository) GetCategorized(ticker string, since time.Time) (*model.CategorizedArticles, error) {
	rows, err := r.db.Query(`
		SELECT id, ticker, category, title, url, domain, search_keyword, published_at, ai_summary, quality_score, model_used
		FROM article
		WHERE ticker = $1 AND status = $2 AND (published_at IS NULL OR published_at >= $3)
		ORDER BY published_at DESC NULLS LAST
	`, ticker, model.StatusSummarized, since)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := &model.CategorizedArticles{}
	for rows.Next() {
		var a model.Article
		err := rows.Scan(&a.ID, &a.Ticker, &a.Category, &a.Title, &a.URL, &a.Domain,
			&a.SearchKeyword, &a.PublishedAt, &a.AISummary, &a.QualityScore, &a.ModelUsed)
		if err != nil {
			return nil, err
		}
		switch a.Category {
		case model.CategoryIndustry:
			out.Industry = append(out.Industry, a)
		case model.CategoryCompetitor:
			out.Competitor = append(out.Competitor, a)
		case model.CategoryUpstream:
			out.Upstream = append(out.Upstream, a)
		case model.CategoryDownstream:
			out.Downstream = append(out.Downstream, a)
		default:
			out.Company = append(out.Company, a)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func (r *ArticleRepository) GetErrorCount(id int64) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM processing_error
		WHERE article_id = $1
	`, id).Scan(&count)

	return count, err
}

func (r *ArticleRepository) SaveError(articleID int64, errMsg string, errType string) error {
	_, err := r.db.Exec(`
		INSERT INTO processing_error(article_id, error_message, error_type)
		VALUES($1, $2, $3)
	`, articleID, errMsg, errType)

	return err
}
