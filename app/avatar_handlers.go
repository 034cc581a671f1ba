package app

import (
	"log"
	"net/http"

	"github.com/Jointkeeper/Soulware-web/app/models"
	"github.com/Jointkeeper/Soulware-web/auth"

	"github.com/gin-gonic/gin"
)

// GenerateAvatar creates a personality avatar for the authenticated user:
// image API -> S3 -> user_avatars row. Avatar generation is not quota
// metered; only AI tests are.
func (s *Server) GenerateAvatar(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	if !s.images.enabled() || s.storage == nil || s.cfg.Avatar.S3Bucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "avatar generation not configured"})
		return
	}

	var req models.AvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing prompt"})
		return
	}

	ctx := c.Request.Context()

	tempURL, err := s.images.Generate(ctx, req.Prompt)
	if err != nil {
		log.Printf("avatar generation failed user=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to generate avatar"})
		return
	}

	image, err := s.images.download(ctx, tempURL)
	if err != nil {
		log.Printf("avatar download failed user=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to generate avatar"})
		return
	}

	publicURL, err := s.uploadAvatar(ctx, claims.Subject, image)
	if err != nil {
		log.Printf("avatar upload failed user=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store avatar"})
		return
	}

	if err := s.insertAvatar(ctx, claims.Subject, publicURL, req.Prompt, req.Traits); err != nil {
		// The object exists either way; losing the metadata row is not worth
		// failing the request over.
		log.Printf("avatar metadata insert failed user=%s err=%v", claims.Subject, err)
	}

	c.JSON(http.StatusOK, gin.H{"imageUrl": publicURL})
}
