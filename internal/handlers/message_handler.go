// internal/handlers/message_handler.go
package handlers

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"whatsapp-campaigns/internal/dto"
	"whatsapp-campaigns/internal/middleware"
	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/internal/services"
	"whatsapp-campaigns/pkg/logger"
	"whatsapp-campaigns/pkg/response"
	"whatsapp-campaigns/pkg/utils"
)

// MessageHandler handles bulk, scheduled and group sends
type MessageHandler struct {
	engine    *services.DeliveryEngine
	scheduler *services.Scheduler
	groups    *services.GroupService
	maxUpload int64
	logger    *logger.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(
	engine *services.DeliveryEngine,
	scheduler *services.Scheduler,
	groups *services.GroupService,
	maxUpload int64,
	logger *logger.Logger,
) *MessageHandler {
	return &MessageHandler{
		engine:    engine,
		scheduler: scheduler,
		groups:    groups,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// SendBulk delivers one body to every recipient and returns the campaign report
func (h *MessageHandler) SendBulk(c *gin.Context) {
	req, _, err := h.bindSend(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !middleware.TenantAllowed(c, req.SessionID, req.Tenant) {
		return
	}

	campaign, err := h.engine.Send(c.Request.Context(), req)
	h.respondCampaign(c, campaign, err)
}

// ScheduleSend arms a bulk send for a future time
func (h *MessageHandler) ScheduleSend(c *gin.Context) {
	req, atTime, err := h.bindSend(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !middleware.TenantAllowed(c, req.SessionID, req.Tenant) {
		return
	}

	runAt, err := services.ParseScheduleTime(atTime)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	job, err := h.scheduler.Schedule(c.Request.Context(), req, runAt)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.Success(c, &dto.ScheduleResponse{
		Message: "Messages scheduled successfully",
		Job:     job.Summary(),
	})
}

// ListScheduled returns the pending jobs of a session
func (h *MessageHandler) ListScheduled(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		respondError(c, h.logger, dto.ErrSessionIDRequired)
		return
	}
	if !middleware.TenantAllowed(c, sessionID) {
		return
	}

	jobs := h.scheduler.Pending(sessionID)
	summaries := make([]models.ScheduledSendSummary, len(jobs))
	for i, job := range jobs {
		summaries[i] = job.Summary()
	}

	response.Success(c, gin.H{
		"jobs":  summaries,
		"total": len(summaries),
	})
}

// CancelScheduled removes a pending job of a session
func (h *MessageHandler) CancelScheduled(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		respondError(c, h.logger, dto.ErrSessionIDRequired)
		return
	}
	if !middleware.TenantAllowed(c, sessionID) {
		return
	}

	if err := h.scheduler.Cancel(c.Request.Context(), sessionID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.SuccessWithMessage(c, "Scheduled send cancelled", gin.H{"id": c.Param("id")})
}

// SendToGroupMembers delivers one body to every member of a joined group
func (h *MessageHandler) SendToGroupMembers(c *gin.Context) {
	var req dto.GroupSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !middleware.TenantAllowed(c, req.SessionID) {
		return
	}

	media, err := req.Media.ToModel()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	campaign, err := h.groups.SendToMembers(c.Request.Context(), req.SessionID, req.GroupID, req.Message, media)
	h.respondCampaign(c, campaign, err)
}

// respondCampaign reports a finished run; a recording failure still returns the report
func (h *MessageHandler) respondCampaign(c *gin.Context, campaign *models.Campaign, err error) {
	if err != nil && campaign == nil {
		respondError(c, h.logger, err)
		return
	}

	resp := dto.NewSendResponse(campaign)
	if err != nil {
		h.logger.Error("Campaign %s was delivered but not recorded: %v", campaign.ID, err)
		resp.Message = "Messages processed but the campaign could not be recorded"
	}
	response.Success(c, resp)
}

// bindSend reads a send request from JSON or multipart form data and returns it with the raw schedule time
func (h *MessageHandler) bindSend(c *gin.Context) (*services.SendRequest, string, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return h.bindMultipart(c)
	}

	var body dto.ScheduleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, "", &dto.ValidationError{Field: "body", Message: "Invalid request body: " + err.Error()}
	}
	if err := body.Validate(); err != nil {
		return nil, "", err
	}

	media, err := body.Media.ToModel()
	if err != nil {
		return nil, "", err
	}

	return &services.SendRequest{
		SessionID:  body.SessionID,
		Tenant:     body.Tenant,
		Recipients: expandRecipients(body.AllRecipients()),
		Message:    body.Message,
		Media:      media,
	}, body.Time(), nil
}

func (h *MessageHandler) bindMultipart(c *gin.Context) (*services.SendRequest, string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	form, err := c.MultipartForm()
	if err != nil {
		return nil, "", &dto.ValidationError{Field: "body", Message: "Invalid form data: " + err.Error()}
	}

	value := func(key string) string {
		if values := form.Value[key]; len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
		return ""
	}

	sessionID := value("sessionId")
	if sessionID == "" {
		return nil, "", dto.ErrSessionIDRequired
	}

	recipients := append([]string{}, form.Value["phoneNumbers"]...)
	recipients = append(recipients, form.Value["recipients"]...)
	recipients = expandRecipients(recipients)

	if files := form.File["file"]; len(files) > 0 {
		numbers, err := readContactsFile(files[0])
		if err != nil {
			return nil, "", err
		}
		recipients = append(recipients, numbers...)
	}

	var media *models.Media
	if files := form.File["media"]; len(files) > 0 {
		if media, err = readMedia(files[0]); err != nil {
			return nil, "", err
		}
	}

	atTime := value("atTime")
	if atTime == "" {
		atTime = value("scheduleTime")
	}

	return &services.SendRequest{
		SessionID:  sessionID,
		Tenant:     value("tenant"),
		Recipients: recipients,
		Message:    value("message"),
		Media:      media,
	}, atTime, nil
}

func readContactsFile(header *multipart.FileHeader) ([]string, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open contacts file: %w", err)
	}
	defer f.Close()

	return utils.ParseContactsFile(header.Filename, f)
}

func readMedia(header *multipart.FileHeader) (*models.Media, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open media: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}
	if len(data) == 0 {
		return nil, dto.ErrInvalidMedia
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(header.Filename)); byExt != "" {
			mimeType = byExt
		} else {
			mimeType = http.DetectContentType(data)
		}
	}

	return &models.Media{
		Name:     header.Filename,
		MimeType: mimeType,
		Data:     data,
	}, nil
}

// expandRecipients splits delimited entries into single addresses
func expandRecipients(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		out = append(out, services.SplitRecipients(entry)...)
	}
	return out
}
