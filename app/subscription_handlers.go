// Package app provides public health and authenticated subscription endpoints.
package app

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Jointkeeper/Soulware-web/app/models"
	"github.com/Jointkeeper/Soulware-web/auth"

	"github.com/gin-gonic/gin"
)

// Health is a public health check endpoint.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// GetSubscription returns the caller's subscription with entitlements
// recomputed from the tier catalog. A user without a row gets the default
// free row created on first read.
func (s *Server) GetSubscription(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	sub, err := s.getSubscription(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if err := s.ensureSubscription(c.Request.Context(), claims.Subject); err == nil {
				sub, err = s.getSubscription(c.Request.Context(), claims.Subject)
			}
		}
		if err != nil {
			log.Printf("subscription load failed user=%s err=%v", claims.Subject, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
			return
		}
	}

	now := time.Now()
	c.JSON(http.StatusOK, gin.H{
		"tier":             sub.Tier,
		"features":         sub.Features(),
		"validUntil":       sub.ValidUntil,
		"autoRenew":        sub.AutoRenew,
		"aiTestsUsedToday": sub.AiTestsUsedToday,
		"aiTestsRemaining": remainingAiTests(sub, now),
	})
}

// GetAiTestAvailability reports whether the caller may start an AI test now.
// The day-boundary reset runs first so a true answer is always backed by a
// durable counter.
func (s *Server) GetAiTestAvailability(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	now := time.Now()
	sub, err := s.gateForUser(c, claims.Subject, now)
	if err != nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"available": checkAvailability(sub, now),
		"remaining": remainingAiTests(sub, now),
	})
}

// gateForUser loads the caller's subscription with the daily reset applied,
// creating the default free row when missing. On failure it writes the error
// response and returns a non-nil error.
func (s *Server) gateForUser(c *gin.Context, userID string, now time.Time) (*models.Subscription, error) {
	if resetErr := s.resetIfNewDayForUser(c, userID, now); resetErr != nil {
		return nil, resetErr
	}
	sub, err := s.getSubscription(c.Request.Context(), userID)
	if err != nil {
		log.Printf("subscription load failed user=%s err=%v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
		return nil, err
	}
	return sub, nil
}

func (s *Server) resetIfNewDayForUser(c *gin.Context, userID string, now time.Time) error {
	if err := s.ensureSubscription(c.Request.Context(), userID); err != nil {
		log.Printf("subscription ensure failed user=%s err=%v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
		return err
	}
	if _, err := s.ResetIfNewDay(c.Request.Context(), userID, now); err != nil {
		log.Printf("daily reset failed user=%s err=%v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
		return err
	}
	return nil
}
