package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HistoryLimit is the most analyses History returns.
const HistoryLimit = 50

// AnalysisRecord is a stored analysis. Report holds the full JSON report.
type AnalysisRecord struct {
	ID           string          `json:"id"`
	UserID       string          `json:"-"`
	URL          string          `json:"url"`
	OverallScore int             `json:"overall_score"`
	Report       json.RawMessage `json:"results"`
	CreatedAt    time.Time       `json:"created_at"`
}

// UserStats summarizes a user's stored analyses.
type UserStats struct {
	TotalAnalyses int     `json:"total_analyses"`
	AverageScore  float64 `json:"avg_score"`
	BestScore     int     `json:"best_score"`
	WorstScore    int     `json:"worst_score"`
}

// APICall is one request to the public API.
type APICall struct {
	UserID         string
	Endpoint       string
	StatusCode     int
	ResponseTimeMs int64
}

// Plan is a subscription tier.
type Plan struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	MonthlyCredits int      `json:"monthly_credits"`
	Price          float64  `json:"price"`
	Features       []string `json:"features"`
}

// SaveAnalysis stores a report for a user. An empty ID gets a new one.
func (s *Store) SaveAnalysis(ctx context.Context, rec *AnalysisRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO analyses (id, user_id, url, overall_score, report, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.UserID, rec.URL, rec.OverallScore, string(rec.Report), rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// History returns up to limit of the user's analyses, newest first. A limit
// outside 1..HistoryLimit means HistoryLimit.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, user_id, url, overall_score, report, created_at
		FROM analyses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	history := make([]AnalysisRecord, 0, limit)
	for rows.Next() {
		var (
			rec    AnalysisRecord
			report string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.URL, &rec.OverallScore, &report, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		rec.Report = json.RawMessage(report)
		history = append(history, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return history, nil
}

// UserStats aggregates the user's stored analyses. A user with none gets zeros.
func (s *Store) UserStats(ctx context.Context, userID string) (UserStats, error) {
	var st UserStats
	err := s.conn.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(AVG(overall_score), 0),
			COALESCE(MAX(overall_score), 0),
			COALESCE(MIN(overall_score), 0)
		FROM analyses
		WHERE user_id = $1
	`, userID).Scan(&st.TotalAnalyses, &st.AverageScore, &st.BestScore, &st.WorstScore)
	if err != nil {
		return UserStats{}, fmt.Errorf("failed to load user stats: %w", err)
	}
	return st, nil
}

// LogAPICall records a public API request.
func (s *Store) LogAPICall(ctx context.Context, call APICall) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO api_logs (id, user_id, endpoint, status_code, response_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), call.UserID, call.Endpoint, call.StatusCode, call.ResponseTimeMs, s.now())
	if err != nil {
		return fmt.Errorf("failed to log api call: %w", err)
	}
	return nil
}

// APICallCount returns how many API calls a user has made.
func (s *Store) APICallCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_logs WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count api calls: %w", err)
	}
	return n, nil
}

// Plans returns every plan, cheapest first.
func (s *Store) Plans(ctx context.Context) ([]Plan, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, monthly_credits, price_cents, features
		FROM plans
		ORDER BY price_cents ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		var (
			p          Plan
			priceCents int
			features   string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.MonthlyCredits, &priceCents, &features); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		p.Price = float64(priceCents) / 100
		if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
			return nil, fmt.Errorf("plan %s: bad features: %w", p.ID, err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read plans: %w", err)
	}
	return plans, nil
}
