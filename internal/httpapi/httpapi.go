// Package httpapi wires the Job Controller onto HTTP routes (spec §6).
// Handlers parse the transport-level request, call one Controller method,
// and map the result (or an *errs.Error) onto a status code and JSON body.
// Every invariant lives in internal/controller; handlers do no business
// logic of their own.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/controller"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/errs"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/livebus"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/pkg/logger"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// Handler holds the Controller and Hub every route needs.
type Handler struct {
	ctrl *controller.Controller
	hub  *livebus.Hub
}

func NewHandler(ctrl *controller.Controller, hub *livebus.Hub) *Handler {
	return &Handler{ctrl: ctrl, hub: hub}
}

// SetupRoutes registers every route from spec §6 onto router.
func SetupRoutes(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(logger.GinLogger(), gin.Recovery(), middleware.CompressionMiddleware())

	router.GET("/health", h.Health)

	meeting := router.Group("/meeting")
	{
		meeting.POST("/start-bbh", h.StartBBH)
		meeting.POST("/upload-file-chunk", h.UploadChunk)
		meeting.POST("/:request_id/diarize", h.Diarize)
		meeting.GET("/:request_id/status", h.GetStatus)
		meeting.GET("/ws/:request_id", h.StreamStatus)
		meeting.PATCH("/:request_id/info", h.UpdateInfo)
		meeting.POST("/:request_id/language", h.ChangeLanguage)
		meeting.PUT("/:request_id/transcript/plain", h.UpdatePlainTranscript)
		meeting.DELETE("/:request_id/cancel", h.Cancel)
		meeting.POST("/:request_id/summary", h.Summary)
		meeting.POST("/chat", h.Chat)
		meeting.GET("/:request_id/download/audio", h.DownloadAudio)
		meeting.GET("/:request_id/download/document", h.DownloadDocument)
	}

	return router
}

// Health reports liveness (spec §6 "GET /health").
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
}

func writeError(c *gin.Context, err error) {
	var e *errs.Error
	status := http.StatusInternalServerError
	if errors.As(err, &e) {
		switch e.Kind {
		case errs.NotFound:
			status = http.StatusNotFound
		case errs.Forbidden:
			status = http.StatusForbidden
		case errs.Conflict:
			status = http.StatusConflict
		case errs.InvalidState, errs.InvalidInput:
			status = http.StatusBadRequest
		case errs.UpstreamFailure:
			status = http.StatusBadGateway
		default:
			status = http.StatusInternalServerError
		}
	}
	if status == http.StatusInternalServerError {
		log := logger.Get()
		if requestID := c.Param("request_id"); requestID != "" {
			log = logger.WithContext("request_id", requestID)
		}
		log.Error("httpapi: unhandled error", "error", err.Error())
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func optionalString(c *gin.Context, field string) *string {
	v, ok := c.GetPostForm(field)
	if !ok || v == "" {
		return nil
	}
	return &v
}

// StartBBH handles spec §6 "POST /meeting/start-bbh".
func (h *Handler) StartBBH(c *gin.Context) {
	requestID := c.PostForm("requestId")
	username := c.PostForm("username")
	language := c.PostForm("language")
	filename := c.PostForm("filename")

	var members []string
	if raw := c.PostForm("meetingMembers"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &members); err != nil {
			writeError(c, errs.Wrap(errs.InvalidInput, err, "malformed meetingMembers"))
			return
		}
	}

	job, err := h.ctrl.Start(c.Request.Context(), requestID, username, language, filename,
		optionalString(c, "bbhName"), optionalString(c, "Type"), optionalString(c, "Host"), members)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request_id": job.RequestID, "status": job.Status})
}

// UploadChunk handles spec §6 "POST /meeting/upload-file-chunk".
func (h *Handler) UploadChunk(c *gin.Context) {
	requestID := c.PostForm("requestId")
	isLast, _ := strconv.ParseBool(c.PostForm("isLastChunk"))

	fileHeader, err := c.FormFile("FileData")
	if err != nil {
		writeError(c, errs.Wrap(errs.InvalidInput, err, "FileData is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		writeError(c, errs.Wrap(errs.Internal, err, "open uploaded chunk"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(c, errs.Wrap(errs.Internal, err, "read uploaded chunk"))
		return
	}

	if err := h.ctrl.UploadChunk(c.Request.Context(), requestID, data, fileHeader.Filename, isLast); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// Diarize handles spec §6 "POST /meeting/{request_id}/diarize".
func (h *Handler) Diarize(c *gin.Context) {
	requestID := c.Param("request_id")
	username := c.Query("username")
	if err := h.ctrl.TriggerDiarize(c.Request.Context(), requestID, username); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// GetStatus handles spec §6 "GET /meeting/{request_id}/status".
func (h *Handler) GetStatus(c *gin.Context) {
	requestID := c.Param("request_id")
	username := c.Query("username")
	env, err := h.ctrl.GetStatus(c.Request.Context(), requestID, username)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

// StreamStatus handles spec §6 "WS /meeting/ws/{request_id}" (spec §4.7's
// streaming-connection lifecycle: accept, register, send a getStatus
// snapshot, then push every subsequent broadcast).
func (h *Handler) StreamStatus(c *gin.Context) {
	requestID := c.Param("request_id")
	username := c.Query("username")

	env, err := h.ctrl.GetStatus(c.Request.Context(), requestID, username)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.hub.ServeWS(c.Writer, c.Request, requestID, env); err != nil {
		logger.Error("httpapi: websocket upgrade failed", "request_id", requestID, "error", err.Error())
	}
}

type updateInfoRequest struct {
	MeetingName *string `json:"bbh_name"`
	MeetingType *string `json:"meeting_type"`
	MeetingHost *string `json:"meeting_host"`
}

// UpdateInfo handles spec §6 "PATCH /meeting/{request_id}/info".
func (h *Handler) UpdateInfo(c *gin.Context) {
	requestID := c.Param("request_id")
	username := c.Query("username")

	var req updateInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Wrap(errs.InvalidInput, err, "malformed request body"))
		return
	}

	if _, err := h.ctrl.UpdateInfo(c.Request.Context(), requestID, username, req.MeetingName, req.MeetingType, req.MeetingHost); err != nil {
		writeError(c, err)
		return
	}

	env, err := h.ctrl.GetStatus(c.Request.Context(), requestID, username)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

type changeLanguageRequest struct {
	Language string `json:"language"`
}

// ChangeLanguage handles spec §6 "POST /meeting/{request_id}/language".
func (h *Handler) ChangeLanguage(c *gin.Context) {
	requestID := c.Param("request_id")
	username := c.Query("username")

	var req changeLanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Language == "" {
		writeError(c, errs.New(errs.InvalidInput, "language is required"))
		return
	}

	if err := h.ctrl.ChangeLanguage(c.Request.Context(), requestID, username, req.Language); err != nil {
		writeError(c, err)
		return
	}

	env, err := h.ctrl.GetStatus(c.Request.Context(), requestID, username)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

type plainSegmentInput struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

type updatePlainTranscriptRequest struct {
	Segments []plainSegmentInput `json:"segments"`
}

// UpdatePlainTranscript handles spec §6 "PUT /meeting/{request_id}/transcript/plain".
func (h *Handler) UpdatePlainTranscript(c *gin.Context) {
	requestID := c.Param("request_id")
	username := c.Query("username")

	var req updatePlainTranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Wrap(errs.InvalidInput, err, "malformed request body"))
		return
	}

	segments := make([]models.WordSegment, len(req.Segments))
	for i, s := range req.Segments {
		segments[i] = models.WordSegment{ID: s.ID, Text: s.Text, Start: s.StartTime, End: s.EndTime}
	}

	if err := h.ctrl.UpdatePlainTranscript(c.Request.Context(), requestID, username, segments); err != nil {
		writeError(c, err)
		return
	}

	env, err := h.ctrl.GetStatus(c.Request.Context(), requestID, username)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

// Cancel handles spec §6 "DELETE /meeting/{request_id}/cancel".
func (h *Handler) Cancel(c *gin.Context) {
	requestID := c.Param("request_id")
	username := c.Query("username")
	if err := h.ctrl.Cancel(c.Request.Context(), requestID, username); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

type summaryRequest struct {
	SummaryType string `json:"summary_type"`
}

// Summary handles spec §6 "POST /meeting/{request_id}/summary".
func (h *Handler) Summary(c *gin.Context) {
	requestID := c.Param("request_id")
	username := c.Query("username")

	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SummaryType == "" {
		writeError(c, errs.New(errs.InvalidInput, "summary_type is required"))
		return
	}

	s, err := h.ctrl.Summary(c.Request.Context(), requestID, username, models.SummaryType(req.SummaryType))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": requestID, "summary_type": s.SummaryType, "summary_content": s.Content})
}

type chatRequest struct {
	RequestID string `json:"requestId"`
	Username  string `json:"username"`
	Message   string `json:"message"`
}

// Chat handles spec §6 "POST /meeting/chat".
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		writeError(c, errs.New(errs.InvalidInput, "requestId, username, and message are required"))
		return
	}

	reply, err := h.ctrl.Chat(c.Request.Context(), req.RequestID, req.Username, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

// DownloadAudio handles spec §6 "GET /meeting/{request_id}/download/audio".
func (h *Handler) DownloadAudio(c *gin.Context) {
	requestID := c.Param("request_id")
	username := c.Query("username")

	path, err := h.ctrl.DownloadAudio(c.Request.Context(), requestID, username)
	if err != nil {
		writeError(c, err)
		return
	}
	c.FileAttachment(path, requestID+".wav")
}

// DownloadDocument handles spec §6 "GET /meeting/{request_id}/download/document".
func (h *Handler) DownloadDocument(c *gin.Context) {
	requestID := c.Param("request_id")
	username := c.Query("username")
	summaryType := c.Query("summary_type")
	if summaryType == "" {
		writeError(c, errs.New(errs.InvalidInput, "summary_type is required"))
		return
	}

	data, err := h.ctrl.DownloadDocument(c.Request.Context(), requestID, username, models.SummaryType(summaryType))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+requestID+"_"+summaryType+".docx")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", data)
}
