package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/EloGuess-KakaoTalk-bot/pkg/guessdto"
)

const (
	webRoom         = "web"
	maxSessionIDLen = 64
)

// GuessService is the part of the guess service the API exposes.
type GuessService interface {
	Start(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error)
	Import(ctx context.Context, meta guessdto.RequestMeta, raw string) (*guessdto.SessionView, error)
	Status(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error)
	Next(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error)
	Prev(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error)
	Select(ctx context.Context, meta guessdto.RequestMeta, ply int) (*guessdto.SessionView, error)
	Flip(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error)
	Dismiss(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error)
	Guess(ctx context.Context, meta guessdto.RequestMeta, elo int) (*guessdto.SessionView, error)
	Submit(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error)
	Export(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.ExportView, error)
	History(ctx context.Context, meta guessdto.RequestMeta, limit int) ([]guessdto.RoundView, error)
	Leaderboard(ctx context.Context, limit int) ([]guessdto.LeaderboardEntry, error)
}

type handler struct {
	svc    GuessService
	logger *zap.Logger
}

// NewRouter mounts the JSON API on a fresh gin engine.
func NewRouter(svc GuessService, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{svc: svc, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(accessLog(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	api := r.Group("/api")
	api.POST("/sessions", h.create)
	api.GET("/leaderboard", h.leaderboard)
	api.GET("/players/:id/rounds", requireSessionID, h.rounds)

	s := api.Group("/sessions/:id", requireSessionID)
	s.GET("", h.view(GuessService.Status))
	s.POST("/start", h.view(GuessService.Start))
	s.POST("/next", h.view(GuessService.Next))
	s.POST("/prev", h.view(GuessService.Prev))
	s.POST("/flip", h.view(GuessService.Flip))
	s.POST("/dismiss", h.view(GuessService.Dismiss))
	s.POST("/submit", h.view(GuessService.Submit))
	s.POST("/import", h.importPGN)
	s.POST("/select", h.selectPly)
	s.POST("/guess", h.guess)
	s.GET("/export", h.export)
	return r
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
		)
	}
}

func requireSessionID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" || len(id) > maxSessionIDLen {
		writeError(c, guessdto.DomainError{Code: guessdto.CodeInvalidArgument, Message: "invalid session id"})
		c.Abort()
		return
	}
	c.Next()
}

func metaFor(c *gin.Context) guessdto.RequestMeta {
	id := strings.TrimSpace(c.Param("id"))
	return guessdto.RequestMeta{SessionID: webRoom + ":" + id, Room: webRoom, Sender: id}
}

func (h *handler) create(c *gin.Context) {
	c.JSON(http.StatusCreated, gin.H{"session_id": uuid.NewString()})
}

func (h *handler) view(op func(GuessService, context.Context, guessdto.RequestMeta) (*guessdto.SessionView, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := op(h.svc, c.Request.Context(), metaFor(c))
		h.respond(c, v, err)
	}
}

func (h *handler) importPGN(c *gin.Context) {
	var req guessdto.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest(err))
		return
	}
	v, err := h.svc.Import(c.Request.Context(), metaFor(c), req.PGN)
	h.respond(c, v, err)
}

func (h *handler) selectPly(c *gin.Context) {
	var req guessdto.SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest(err))
		return
	}
	v, err := h.svc.Select(c.Request.Context(), metaFor(c), req.Ply)
	h.respond(c, v, err)
}

func (h *handler) guess(c *gin.Context) {
	var req guessdto.GuessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest(err))
		return
	}
	v, err := h.svc.Guess(c.Request.Context(), metaFor(c), req.Elo)
	h.respond(c, v, err)
}

func (h *handler) export(c *gin.Context) {
	out, err := h.svc.Export(c.Request.Context(), metaFor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.FileName))
	c.Data(http.StatusOK, "application/x-chess-pgn; charset=utf-8", []byte(out.PGN))
}

func (h *handler) leaderboard(c *gin.Context) {
	entries, err := h.svc.Leaderboard(c.Request.Context(), queryInt(c, "limit"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// rounds lists a web player's history. The player id is the server-issued
// session uuid and acts as a bearer secret: anyone holding it can read the
// history, same as the session routes.
func (h *handler) rounds(c *gin.Context) {
	rounds, err := h.svc.History(c.Request.Context(), metaFor(c), queryInt(c, "limit"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": rounds})
}

// 에러가 있어도 뷰가 있으면 함께 내려준다. 실패한 fetch 뒤 LastError 표시용.
func (h *handler) respond(c *gin.Context, v *guessdto.SessionView, err error) {
	if err != nil {
		h.failWithView(c, err, v)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handler) fail(c *gin.Context, err error) {
	h.failWithView(c, err, nil)
}

func (h *handler) failWithView(c *gin.Context, err error, v *guessdto.SessionView) {
	var de guessdto.DomainError
	if !errors.As(err, &de) {
		h.logger.Error("http_unexpected_error", zap.String("path", c.FullPath()), zap.Error(err))
		de = guessdto.DomainError{Code: guessdto.CodeInternal, Message: "internal error"}
	}
	body := gin.H{"error": de}
	if v != nil {
		body["session"] = v
	}
	c.JSON(StatusFor(de), body)
}

func writeError(c *gin.Context, de guessdto.DomainError) {
	c.JSON(StatusFor(de), gin.H{"error": de})
}

func badRequest(err error) guessdto.DomainError {
	return guessdto.DomainError{Code: guessdto.CodeInvalidArgument, Message: err.Error()}
}

// StatusFor maps a domain error code to the HTTP status the API answers with.
func StatusFor(de guessdto.DomainError) int {
	switch de.Code {
	case guessdto.CodeInvalidStage, guessdto.CodeNoGame, guessdto.CodeFetchInProgress, guessdto.CodeStaleFetch:
		return http.StatusConflict
	case guessdto.CodeEmptyPGN, guessdto.CodeMissingRatingHeaders, guessdto.CodeTooShort, guessdto.CodeInvalidMovetext:
		return http.StatusUnprocessableEntity
	case guessdto.CodeSessionNotFound:
		return http.StatusNotFound
	case guessdto.CodeRoomNotAllowed:
		return http.StatusForbidden
	case guessdto.CodeInvalidArgument:
		return http.StatusBadRequest
	}
	if de.Retryable {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return 0
	}
	return n
}
