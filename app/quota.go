// Package app enforces the daily AI-test allowance for authenticated users.
package app

import (
	"context"
	"time"

	"github.com/Jointkeeper/Soulware-web/app/models"
)

// sameUTCDay compares calendar dates in UTC. The "day" boundary is a
// date-only comparison, not an elapsed 24h window.
func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// isNewDay reports whether the subscription's usage counter belongs to an
// earlier calendar day than now.
func isNewDay(sub *models.Subscription, now time.Time) bool {
	return sub.LastAiTestDate == nil || !sameUTCDay(*sub.LastAiTestDate, now)
}

// checkAvailability decides whether an AI test may run right now.
//
// A missing record fails closed. The unlimited sentinel always passes. On a
// new calendar day the gate reports unavailable on the stale counter rather
// than granting access: the caller must run ResetIfNewDay first so the reset
// is durable before usage is recorded against it.
func checkAvailability(sub *models.Subscription, now time.Time) bool {
	if sub == nil {
		return false
	}
	limit := sub.Features().AiTestsPerDay
	if limit == models.UnlimitedAiTests {
		return true
	}
	if isNewDay(sub, now) {
		return false
	}
	return sub.AiTestsUsedToday < limit
}

// remainingAiTests returns how many AI tests the user may still run today;
// nil means unlimited.
func remainingAiTests(sub *models.Subscription, now time.Time) *int {
	limit := sub.Features().AiTestsPerDay
	if limit == models.UnlimitedAiTests {
		return nil
	}
	used := sub.AiTestsUsedToday
	if isNewDay(sub, now) {
		used = 0
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// ResetIfNewDay zeroes the daily counter when the stored counter belongs to an
// earlier calendar day. The date comparison lives in the WHERE clause, so the
// mutation is idempotent: a second call on the same day matches no row.
func (s *Server) ResetIfNewDay(ctx context.Context, userID string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET ai_tests_used_today = 0, last_ai_test_date = $2, updated_at = now()
		WHERE user_id = $1
		  AND (last_ai_test_date IS NULL
		       OR (last_ai_test_date AT TIME ZONE 'UTC')::date <> ($2 AT TIME ZONE 'UTC')::date);
	`, userID, now.UTC())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// RecordAiTestUsage increments today's counter after a completed AI test.
//
// The increment is a single conditional update so that two concurrent requests
// cannot push usage past the limit: the loser matches no row and reports not
// allowed. limit is the caller's recomputed aiTestsPerDay for the user's tier.
func (s *Server) RecordAiTestUsage(ctx context.Context, userID string, limit int, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET ai_tests_used_today = ai_tests_used_today + 1, last_ai_test_date = $2, updated_at = now()
		WHERE user_id = $1
		  AND ($3 = -1 OR ai_tests_used_today < $3);
	`, userID, now.UTC(), limit)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
