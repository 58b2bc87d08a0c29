package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"finishflow/internal/artifact"
	"finishflow/internal/model"
	"finishflow/shared/middleware"
	"finishflow/shared/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	serviceName = "finishflow"
	// previewLimit - сколько символов тела запроса вернуть при ошибке разбора.
	previewLimit = 200
	videoMIME    = "video/mp4"
)

// Submitter запускает генерацию видео.
type Submitter interface {
	Submit(ctx context.Context, req model.GenerationRequest) (*model.SubmitResult, error)
}

// ArtifactOpener отдает файл по токену скачивания. Resolve не расходует
// одноразовый токен, Open расходует.
type ArtifactOpener interface {
	Resolve(token string) (string, bool)
	Open(token string) (*artifact.Download, error)
}

// VideoHandler - HTTP поверхность FinishFlow.
type VideoHandler struct {
	pipeline     Submitter
	artifacts    ArtifactOpener
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewVideoHandler создает обработчик. maxBodyBytes <= 0 отключает ограничение тела.
func NewVideoHandler(pipeline Submitter, artifacts ArtifactOpener, maxBodyBytes int64, logger *zap.Logger) *VideoHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VideoHandler{
		pipeline:     pipeline,
		artifacts:    artifacts,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// RegisterRoutes регистрирует маршруты. submitLimiter может быть nil.
func (h *VideoHandler) RegisterRoutes(router *gin.Engine, submitLimiter gin.HandlerFunc) {
	router.GET("/health", h.health)
	router.HEAD("/health", h.health)

	submit := []gin.HandlerFunc{h.execute}
	if submitLimiter != nil {
		submit = append([]gin.HandlerFunc{submitLimiter}, submit...)
	}
	router.POST("/execute", submit...)
	router.POST("/api/execute", submit...)

	router.GET("/download/:token", h.download)
	router.HEAD("/download/:token", h.downloadHead)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.NewErrorResponse(models.ErrCodeNotFound, "Not Found"))
	})
}

func (h *VideoHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"service": serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *VideoHandler) execute(c *gin.Context) {
	log := h.logger.With(zap.String("request_id", c.GetString(middleware.RequestIDKey)))

	req, errResp, status := h.parseRequest(c)
	if errResp != nil {
		submissionsTotal.WithLabelValues(errResp.Error.Code).Inc()
		log.Warn("Rejected execute request", zap.Int("status", status), zap.String("details", errResp.Details))
		c.AbortWithStatusJSON(status, errResp)
		return
	}

	result, err := h.pipeline.Submit(c.Request.Context(), req)
	if err != nil {
		submissionsTotal.WithLabelValues(models.ErrorCode(err)).Inc()
		log.Warn("Generation failed", zap.String("topic", req.Topic), zap.Error(err))
		handleServiceError(c, err)
		return
	}

	submissionsTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

// parseRequest читает тело без доверия к Content-Type. Пустое тело, пустой
// объект и невалидный JSON дают 400.
func (h *VideoHandler) parseRequest(c *gin.Context) (model.GenerationRequest, *models.ErrorResponse, int) {
	var req model.GenerationRequest

	body := io.Reader(c.Request.Body)
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			resp := models.NewErrorResponse(models.ErrCodeBadRequest, "Request body too large")
			return req, &resp, http.StatusRequestEntityTooLarge
		}
		resp := models.NewErrorResponse(models.ErrCodeBadRequest, "Failed to read request body")
		resp.Details = err.Error()
		return req, &resp, http.StatusBadRequest
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		resp := models.NewErrorResponse(models.ErrCodeBadRequest, "Invalid or empty JSON body")
		return req, &resp, http.StatusBadRequest
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		resp := models.NewErrorResponse(models.ErrCodeBadRequest, "Invalid JSON body")
		resp.Details = err.Error()
		resp.Preview = preview(string(raw))
		return req, &resp, http.StatusBadRequest
	}
	if len(fields) == 0 {
		resp := models.NewErrorResponse(models.ErrCodeBadRequest, "Invalid or empty JSON body")
		return req, &resp, http.StatusBadRequest
	}
	if err := json.Unmarshal(trimmed, &req); err != nil {
		resp := models.NewErrorResponse(models.ErrCodeBadRequest, "Invalid JSON body")
		resp.Details = err.Error()
		resp.Preview = preview(string(raw))
		return req, &resp, http.StatusBadRequest
	}
	return req, nil, 0
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > previewLimit {
		r = r[:previewLimit]
	}
	return string(r)
}

// download отдает видео с поддержкой Range. Неизвестный и истекший токен
// неразличимы.
func (h *VideoHandler) download(c *gin.Context) {
	token := c.Param("token")
	dl, err := h.artifacts.Open(token)
	if err != nil {
		status := "not_found"
		if !errors.Is(err, artifact.ErrNotFound) {
			status = "error"
			h.logger.Error("Failed to open artifact", zap.Error(err))
		}
		downloadsTotal.WithLabelValues(status).Inc()
		handleServiceError(c, err)
		return
	}
	defer dl.File.Close()

	downloadsTotal.WithLabelValues("ok").Inc()
	setDownloadHeaders(c, dl.Name)
	http.ServeContent(c.Writer, c.Request, dl.Name, dl.ModTime, dl.File)
}

// downloadHead отвечает заголовками без тела и оставляет токен в хранилище.
func (h *VideoHandler) downloadHead(c *gin.Context) {
	path, ok := h.artifacts.Resolve(c.Param("token"))
	if !ok {
		handleServiceError(c, artifact.ErrNotFound)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		handleServiceError(c, artifact.ErrNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		handleServiceError(c, artifact.ErrNotFound)
		return
	}

	name := filepath.Base(path)
	setDownloadHeaders(c, name)
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), f)
}

func setDownloadHeaders(c *gin.Context, name string) {
	c.Header("Content-Type", videoMIME)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Cache-Control", "no-store")
}
