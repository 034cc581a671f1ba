// Package app provides subscription persistence for authenticated requests.
package app

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Jointkeeper/Soulware-web/app/models"

	"github.com/lib/pq"
)

// pq unique_violation
const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func (s *Server) getSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	var (
		sub        models.Subscription
		validUntil sql.NullTime
		lastAiTest sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT tier, valid_until, auto_renew, last_ai_test_date, ai_tests_used_today, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1;
	`, userID).Scan(
		&sub.Tier,
		&validUntil,
		&sub.AutoRenew,
		&lastAiTest,
		&sub.AiTestsUsedToday,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.UserID = userID
	if validUntil.Valid {
		t := validUntil.Time
		sub.ValidUntil = &t
	}
	if lastAiTest.Valid {
		t := lastAiTest.Time
		sub.LastAiTestDate = &t
	}
	return &sub, nil
}

// ensureSubscription creates the default free row if the user has none yet.
// Subscriptions are created lazily on first read, never deleted.
func (s *Server) ensureSubscription(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, tier, auto_renew, ai_tests_used_today)
		VALUES ($1, $2, false, 0)
		ON CONFLICT (user_id) DO NOTHING;
	`, userID, models.TierFree)
	return err
}

// upsertSubscriptionTier applies a webhook-driven tier change. The write is an
// idempotent upsert keyed on user_id: replaying the same event leaves the row
// in the same state. validUntil nil clears the validity window (free tier).
func (s *Server) upsertSubscriptionTier(ctx context.Context, userID string, tier models.SubscriptionTier, validUntil *time.Time) error {
	var until sql.NullTime
	if validUntil != nil {
		until = sql.NullTime{Time: *validUntil, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, tier, valid_until, auto_renew, ai_tests_used_today)
		VALUES ($1, $2, $3, false, 0)
		ON CONFLICT (user_id) DO UPDATE
		SET tier = EXCLUDED.tier,
		    valid_until = EXCLUDED.valid_until,
		    updated_at = now();
	`, userID, tier, until)
	return err
}

func (s *Server) getStripeCustomerID(ctx context.Context, userID string) (string, error) {
	var customerID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT stripe_customer_id
		FROM stripe_customers
		WHERE user_id = $1;
	`, userID).Scan(&customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return customerID.String, nil
}

// insertStripeCustomer records the user ↔ Stripe customer mapping. The unique
// constraint on user_id is the backstop against concurrent checkout attempts;
// callers treat a unique violation as "mapping already exists, re-read it".
func (s *Server) insertStripeCustomer(ctx context.Context, userID, customerID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stripe_customers (user_id, stripe_customer_id)
		VALUES ($1, $2);
	`, userID, customerID)
	return err
}

func (s *Server) insertTestResult(ctx context.Context, r *models.TestResult) error {
	scores, err := marshalScores(r.Scores)
	if err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx, `
		INSERT INTO test_results (user_id, test_id, kind, scores, analysis)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at;
	`, r.UserID, r.TestID, r.Kind, scores, nullIfEmpty(r.Analysis)).Scan(&r.ID, &r.CreatedAt)
}

func (s *Server) listTestResults(ctx context.Context, userID string, limit int) ([]models.TestResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, test_id, kind, scores, analysis, created_at
		FROM test_results
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2;
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.TestResult{}
	for rows.Next() {
		var (
			r        models.TestResult
			scores   []byte
			analysis sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.TestID, &r.Kind, &scores, &analysis, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.UserID = userID
		r.Analysis = analysis.String
		if r.Scores, err = unmarshalScores(scores); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) insertAvatar(ctx context.Context, userID, imageURL, prompt string, traits map[string]string) error {
	traitsJSON, err := marshalTraits(traits)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_avatars (user_id, image_url, prompt, traits)
		VALUES ($1, $2, $3, $4);
	`, userID, imageURL, prompt, traitsJSON)
	return err
}

func nullIfEmpty(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
