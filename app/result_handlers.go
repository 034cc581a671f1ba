// Package app stores completed test results and meters AI-test usage.
package app

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/Jointkeeper/Soulware-web/app/models"
	"github.com/Jointkeeper/Soulware-web/auth"

	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 50

// SaveTestResult persists a completed test. A static result is stored
// unconditionally; an AI result is the usage-metering trigger, so it must
// pass the quota gate and the counter increment before it is stored.
func (s *Server) SaveTestResult(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	var result models.TestResult
	if err := c.ShouldBindJSON(&result); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid result payload"})
		return
	}
	if result.TestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing test id"})
		return
	}
	result.UserID = claims.Subject

	if result.Kind == models.TestKindAi {
		now := time.Now()
		sub, err := s.gateForUser(c, claims.Subject, now)
		if err != nil {
			return
		}
		if !checkAvailability(sub, now) {
			c.JSON(http.StatusForbidden, gin.H{"error": "daily AI test limit reached, upgrade or try again tomorrow"})
			return
		}
		allowed, err := s.RecordAiTestUsage(c.Request.Context(), claims.Subject, sub.Features().AiTestsPerDay, now)
		if err != nil {
			log.Printf("usage record failed user=%s err=%v", claims.Subject, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record usage"})
			return
		}
		if !allowed {
			// A concurrent request took the last slot between our gate check
			// and the conditional increment.
			c.JSON(http.StatusForbidden, gin.H{"error": "daily AI test limit reached, upgrade or try again tomorrow"})
			return
		}
	}

	if err := s.insertTestResult(c.Request.Context(), &result); err != nil {
		log.Printf("result insert failed user=%s test=%s err=%v", claims.Subject, result.TestID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save result"})
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListTestResults returns the caller's result history, newest first.
func (s *Server) ListTestResults(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	limit := defaultHistoryLimit
	if q := c.Query("limit"); q != "" {
		if v, err := parsePositiveInt(q); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	results, err := s.listTestResults(c.Request.Context(), claims.Subject, limit)
	if err != nil {
		log.Printf("result list failed user=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load results"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(results),
		"results": results,
	})
}

func marshalScores(scores []models.ScaleScore) ([]byte, error) {
	if len(scores) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(scores)
}

func unmarshalScores(data []byte) ([]models.ScaleScore, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var scores []models.ScaleScore
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

func marshalTraits(traits map[string]string) ([]byte, error) {
	if len(traits) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(traits)
}
