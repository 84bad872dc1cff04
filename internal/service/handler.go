// Package service exposes the recipe pipeline over HTTP.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"txservice/internal/executor"
	"txservice/internal/grammar"
	"txservice/internal/logging"
	"txservice/internal/row"
	"txservice/internal/wrangle"
)

// RecipeHeader carries the recipe text of a transform request.
const RecipeHeader = "Recipe"

// Handler serves the transform and health routes.
type Handler struct {
	svc     *wrangle.Service
	charset string
}

// NewHandler serves transforms with svc. charset is used for bodies whose
// Content-Type names none; empty means UTF-8.
func NewHandler(svc *wrangle.Service, charset string) *Handler {
	if charset == "" {
		charset = "utf-8"
	}
	return &Handler{svc: svc, charset: charset}
}

// Register mounts the handler's routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/transform", h.Transform)
	r.GET("/healthz", h.Healthz)
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Transform runs the request's recipe over its body. Protocol errors get a
// bare 400; recipe errors, and anything unexpected, a 400 whose body is the
// error message as a JSON string.
func (h *Handler) Transform(c *gin.Context) {
	log := logging.L().With(zap.String("requestID", GetRequestID(c)))

	defer func() {
		if p := recover(); p != nil {
			log.Error("transform panicked", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			c.AbortWithStatusJSON(http.StatusBadRequest, fmt.Sprint(p))
		}
	}()

	recipes := c.Request.Header.Values(RecipeHeader)
	if len(recipes) == 0 {
		log.Info("missing recipe header")
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatus(http.StatusRequestEntityTooLarge)
			return
		}
		log.Info("unreadable body", zap.Error(err))
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	if len(raw) == 0 {
		log.Info("empty body")
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	text, err := decodeBody(raw, c.GetHeader("Content-Type"), h.charset)
	if err != nil {
		log.Info("undecodable body", zap.Error(err))
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	out, err := h.svc.Transform(c.Request.Context(), recipes[0], []*row.Row{row.New(wrangle.BodyField, text)})
	if err != nil {
		var (
			perr *grammar.ParseError
			rerr *executor.RecipeExecutionError
		)
		switch {
		case errors.As(err, &perr):
			log.Info("recipe rejected", zap.Error(err))
		case errors.As(err, &rerr):
			log.Warn("recipe failed", zap.Error(err))
		default:
			log.Error("transform failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, err.Error())
		return
	}
	if out == nil {
		out = []*row.Row{}
	}
	body, err := json.Marshal(out)
	if err != nil {
		log.Warn("unencodable result", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
