package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
	"github.com/yungbote/archivebridge-backend/internal/http/response"
	"github.com/yungbote/archivebridge-backend/internal/services"
)

// datetimeTriggered must be ISO 8601 with an explicit UTC offset.
var datetimeWithOffset = regexp.MustCompile(
	`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?([+-]\d{2}:\d{2}|Z)$`)

type processBody struct {
	Process struct {
		ID       string `json:"id"`
		TestMode bool   `json:"testMode"`
		Resume   bool   `json:"resume"`
	} `json:"process"`
	Context struct {
		UserTriggered     string `json:"userTriggered"`
		DatetimeTriggered string `json:"datetimeTriggered"`
		TriggerType       string `json:"triggerType"`
		ArtifactsTTL      *int   `json:"artifactsTTL"`
	} `json:"context"`
	CallbackURL string `json:"callbackUrl"`
	Token       string `json:"token"`
}

type abortBody struct {
	Origin string `json:"origin"`
	Reason string `json:"reason"`
}

type ProcessHandler struct {
	jobs *services.JobService
}

func NewProcessHandler(jobs *services.JobService) *ProcessHandler {
	return &ProcessHandler{jobs: jobs}
}

// POST /process
func (h *ProcessHandler) Submit(c *gin.Context) {
	var body processBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "malformed_body", err)
		return
	}
	if body.Process.ID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_process_id",
			errors.New("body requires a process.id"))
		return
	}
	if body.Token != "" {
		if _, err := uuid.Parse(body.Token); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_token", err)
			return
		}
	}
	if body.Context.DatetimeTriggered != "" && !datetimeWithOffset.MatchString(body.Context.DatetimeTriggered) {
		response.RespondError(c, http.StatusBadRequest, "invalid_datetime",
			fmt.Errorf("datetimeTriggered %q is not ISO 8601 with offset", body.Context.DatetimeTriggered))
		return
	}
	triggerType := pipeline.TriggerType(body.Context.TriggerType)
	if body.Context.TriggerType != "" && !triggerType.Valid() {
		response.RespondError(c, http.StatusBadRequest, "invalid_trigger_type",
			fmt.Errorf("unknown trigger type %q", body.Context.TriggerType))
		return
	}
	if body.CallbackURL != "" {
		u, err := url.Parse(body.CallbackURL)
		if err != nil || !u.IsAbs() {
			response.RespondError(c, http.StatusBadRequest, "invalid_callback_url",
				fmt.Errorf("callbackUrl %q is not an absolute URL", body.CallbackURL))
			return
		}
	}

	token, err := h.jobs.Submit(c.Request.Context(), services.SubmitParams{
		Token:       body.Token,
		JobConfigID: body.Process.ID,
		TestMode:    body.Process.TestMode,
		Resume:      body.Process.Resume,
		CallbackURL: body.CallbackURL,
		Context: pipeline.JobContext{
			UserTriggered:     body.Context.UserTriggered,
			DatetimeTriggered: body.Context.DatetimeTriggered,
			TriggerType:       triggerType,
			ArtifactsTTL:      body.Context.ArtifactsTTL,
		},
	})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "submission_failed", err)
		return
	}
	response.RespondValue(c, http.StatusCreated, token)
}

// GET /report?token=
func (h *ProcessHandler) Report(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_token",
			errors.New("query requires a token"))
		return
	}
	result, err := h.jobs.Report(c.Request.Context(), token)
	if errors.Is(err, services.ErrUnknownJob) {
		response.RespondError(c, http.StatusNotFound, "unknown_token", err)
		return
	}
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "report_failed", err)
		return
	}
	if !result.Final {
		c.JSON(http.StatusServiceUnavailable, result.Report)
		return
	}
	c.JSON(http.StatusOK, result.Report)
}

// DELETE /process?token=
func (h *ProcessHandler) Abort(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_token",
			errors.New("query requires a token"))
		return
	}
	var body abortBody
	_ = c.ShouldBindJSON(&body)

	err := h.jobs.Abort(c.Request.Context(), token, body.Origin, body.Reason)
	if errors.Is(err, services.ErrUnknownJob) {
		response.RespondError(c, http.StatusNotFound, "unknown_token", err)
		return
	}
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "abort_failed", err)
		return
	}
	c.String(http.StatusOK, "successfully aborted job '%s'", token)
}
