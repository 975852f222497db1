package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/truthsnap/forensics-engine/internal/db"
	"github.com/truthsnap/forensics-engine/internal/engine"
	"github.com/truthsnap/forensics-engine/internal/exifmeta"
	"github.com/truthsnap/forensics-engine/internal/imaging"
	"github.com/truthsnap/forensics-engine/pkg/models"
)

// maxUploadBytes caps the multipart image payload at 20 MiB.
const maxUploadBytes = 20 << 20

type APIHandler struct {
	dbStore *db.PostgresStore
	engine  *engine.Engine
	wsHub   *Hub
}

func SetupRouter(dbStore *db.PostgresStore, eng *engine.Engine, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var
	// Production: ALLOWED_ORIGINS=https://truthsnap.io,https://www.truthsnap.io
	// Development: ALLOWED_ORIGINS=http://localhost:3000 (or leave empty for *)
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			// Check if the request origin is in the allowed list
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{dbStore: dbStore, engine: eng, wsHub: wsHub}
	limiter := NewRateLimiter(30, 10)

	api := r.Group("/api/v1")
	{
		api.GET("/health", handler.handleHealth)
		api.GET("/stream", wsHub.Subscribe)

		protected := api.Group("", AuthMiddleware())
		{
			protected.POST("/verify", limiter.Middleware(), handler.handleVerify)
			protected.GET("/analyses", handler.handleGetAnalyses)
			protected.GET("/analyses/:hash", handler.handleGetAnalysis)
			protected.GET("/stats", handler.handleStats)
		}
	}

	// Serve Static Dashboard
	r.Static("/dashboard", "./public")

	return r
}

// handleVerify accepts a multipart image upload and runs the full
// verification pipeline.
//
// Form fields:
//
//	image           the file (required, <= 20 MiB)
//	mode            PHOTO (default) or DOCUMENT
//	detail_level    BASIC (default) or DETAILED
//	preserve_exif   JSON object of EXIF tags captured client-side
//	                before the transport stripped them
//	source_platform known re-encoding platform, e.g. "linkedin"
func (h *APIHandler) handleVerify(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing image file", "details": err.Error()})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload too large or unreadable", "details": err.Error()})
		return
	}

	mode := models.ModePhoto
	if strings.EqualFold(c.PostForm("mode"), string(models.ModeDocument)) {
		mode = models.ModeDocument
	}
	detail := models.DetailBasic
	if strings.EqualFold(c.PostForm("detail_level"), string(models.DetailDetailed)) {
		detail = models.DetailDetailed
	}

	opts := engine.Options{SourcePlatform: strings.ToLower(c.PostForm("source_platform"))}
	if sidecar := c.PostForm("preserve_exif"); sidecar != "" {
		var extended exifmeta.Map
		if err := json.Unmarshal([]byte(sidecar), &extended); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid preserve_exif payload", "details": err.Error()})
			return
		}
		opts.ExtendedExif = extended
	}

	result, err := h.engine.Verify(c.Request.Context(), raw, mode, detail, opts)
	if err != nil {
		if errors.Is(err, imaging.ErrInvalidFormat) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unsupported image format", "details": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis failed", "details": err.Error()})
		return
	}

	hashBytes := sha256.Sum256(raw)
	imageHash := hex.EncodeToString(hashBytes[:])

	if h.dbStore != nil {
		if err := h.dbStore.SaveVerifyResult(context.Background(), imageHash, mode, result); err != nil {
			log.Printf("[API] Failed to save analysis result to DB: %v", err)
		}
	}

	if result.Verdict != models.VerdictReal {
		BroadcastVerdictAlert(h.wsHub, imageHash, result)
	}

	c.JSON(http.StatusOK, result)
}

// handleHealth returns engine status and capabilities for service discovery
func (h *APIHandler) handleHealth(c *gin.Context) {
	dbConnected := h.dbStore != nil

	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "TruthSnap Forensics Engine v1.0",
		"capabilities": gin.H{
			"metadata_validation": true,
			"frequency_analysis":  true,
			"visual_watermark":    true,
			"crypto_watermark":    true,
			"face_swap":           true,
			"intrinsic_analysis":  true,
			"weighted_fusion":     true,
		},
		"dbConnected": dbConnected,
	})
}

// handleGetAnalyses returns stored verdicts newest-first.
func (h *APIHandler) handleGetAnalyses(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	// Parse pagination parameters
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	analyses, totalCount, err := h.dbStore.GetRecentAnalyses(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analyses", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       analyses,
		"totalCount": totalCount,
		"page":       page,
		"limit":      limit,
	})
}

// handleGetAnalysis returns the stored full result for one image hash.
func (h *APIHandler) handleGetAnalysis(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	hash := strings.ToLower(c.Param("hash"))
	if len(hash) != 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image hash format"})
		return
	}

	result, err := h.dbStore.GetAnalysisByHash(c.Request.Context(), hash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analysis", "details": err.Error()})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No analysis for this image hash"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleStats returns aggregate verdict counts.
func (h *APIHandler) handleStats(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}
	stats, err := h.dbStore.GetVerdictStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// BroadcastVerdictAlert pushes a non-real verdict to every dashboard
// subscriber.
func BroadcastVerdictAlert(wsHub *Hub, imageHash string, result *models.VerifyResult) {
	if wsHub == nil {
		return
	}
	payload := gin.H{
		"type": "verdict_alert",
		"alert": gin.H{
			"requestId":  result.RequestID,
			"imageHash":  imageHash,
			"verdict":    result.Verdict,
			"confidence": result.Confidence,
			"reason":     result.Reason,
		},
	}
	alertBytes, _ := json.Marshal(payload)
	wsHub.Broadcast(alertBytes)
	log.Printf("[ALERT] %s verdict: %s @ %.2f (%s)",
		result.Verdict, imageHash[:12], result.Confidence, result.Reason)
}
