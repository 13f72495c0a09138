package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/usecase"
)

// Finder is the read side served over HTTP.
type Finder interface {
	Browse(ctx context.Context, minScore, limit int) ([]domain.StoredRecord, error)
	Search(ctx context.Context, query string, threshold float64, limit int) ([]domain.SearchHit, error)
}

type itemResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary"`
	Score       int       `json:"score"`
	Tags        string    `json:"tags"`
	Source      string    `json:"source"`
	PublishDate string    `json:"publish_date"`
	CreatedAt   time.Time `json:"created_at"`
	Similarity  *float64  `json:"similarity,omitempty"`
}

func toResponse(rec domain.StoredRecord) itemResponse {
	return itemResponse{
		ID:          rec.ID,
		Title:       rec.Title,
		URL:         rec.URL,
		Summary:     rec.Summary,
		Score:       rec.Score,
		Tags:        rec.Tags,
		Source:      rec.Source,
		PublishDate: rec.PublishDate,
		CreatedAt:   rec.CreatedAt,
	}
}

// NewRouter builds the read-only API:
//
//	GET /healthz
//	GET /items?min_score=7&limit=50
//	GET /search?q=...&threshold=0.25&limit=20
func NewRouter(finder Finder, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/items", func(c *gin.Context) {
		minScore, err := intQuery(c, "min_score")
		if err != nil {
			badRequest(c, err)
			return
		}
		limit, err := intQuery(c, "limit")
		if err != nil {
			badRequest(c, err)
			return
		}

		records, err := finder.Browse(c.Request.Context(), minScore, limit)
		if err != nil {
			logger.Error("browse failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "browse failed"})
			return
		}

		items := make([]itemResponse, 0, len(records))
		for _, rec := range records {
			items = append(items, toResponse(rec))
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})

	r.GET("/search", func(c *gin.Context) {
		limit, err := intQuery(c, "limit")
		if err != nil {
			badRequest(c, err)
			return
		}
		threshold := usecase.ConfiguredThreshold
		if raw := c.Query("threshold"); raw != "" {
			threshold, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				badRequest(c, errors.New("threshold must be a number"))
				return
			}
		}

		hits, err := finder.Search(c.Request.Context(), c.Query("q"), threshold, limit)
		if errors.Is(err, usecase.ErrEmptyQuery) {
			badRequest(c, err)
			return
		}
		if err != nil {
			logger.Error("search failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
			return
		}

		items := make([]itemResponse, 0, len(hits))
		for _, hit := range hits {
			item := toResponse(hit.Record)
			similarity := hit.Similarity
			item.Similarity = &similarity
			items = append(items, item)
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})

	return r
}

// Serve runs the API until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return v, nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
