package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cultiflow/voicedesk/internal/ledger"
	"github.com/cultiflow/voicedesk/internal/pipeline"
	"github.com/cultiflow/voicedesk/internal/utils"
)

// EnqueueFunc hands a voice query to the processing queue and returns the
// queue message id.
type EnqueueFunc func(c *gin.Context, req pipeline.Request) (string, error)

type CallHandler struct {
	ledger  ledger.Ledger
	enqueue EnqueueFunc // nil when no queue is configured
}

func NewCallHandler(l ledger.Ledger, enqueue EnqueueFunc) *CallHandler {
	return &CallHandler{ledger: l, enqueue: enqueue}
}

func (h *CallHandler) Recent(c *gin.Context) {
	limit := 10
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := h.ledger.GetRecentCalls(c.Request.Context(), limit)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "CallHandler.Recent", "failed to list calls", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows})
}

func (h *CallHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("call_id"), 10, 64)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CallHandler.Get", "invalid call id", err))
		return
	}

	call, err := h.ledger.GetCall(c.Request.Context(), uint(id))
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "CallHandler.Get", "failed to load call", err))
		return
	}
	if call == nil {
		writeError(c, utils.E(utils.CodeNotFound, "CallHandler.Get", "call not found", nil))
		return
	}
	c.JSON(http.StatusOK, call)
}

func (h *CallHandler) Conversations(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("call_id"), 10, 64)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CallHandler.Conversations", "invalid call id", err))
		return
	}

	rows, err := h.ledger.GetCallConversations(c.Request.Context(), uint(id))
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "CallHandler.Conversations", "failed to list conversations", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"call_id":       uint(id),
		"conversations": rows,
	})
}

func (h *CallHandler) Statistics(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CallHandler.Statistics", "date must be YYYY-MM-DD", err))
		return
	}

	stats, err := h.ledger.GetStatistics(c.Request.Context(), date)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "CallHandler.Statistics", "failed to compute statistics", err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

type ProcessRequest struct {
	AudioPath  string  `json:"audio_path" binding:"required"`
	OutputPath string  `json:"output_path"`
	CallerID   *string `json:"caller_id"`
	Extension  string  `json:"extension"`
}

// Process queues one recorded voice query. Responds 202 with the queue
// message id; results are observed through the call ledger.
func (h *CallHandler) Process(c *gin.Context) {
	if h.enqueue == nil {
		writeError(c, utils.E(utils.CodeUnavailable, "CallHandler.Process", "processing queue not configured", nil))
		return
	}

	var body ProcessRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CallHandler.Process", "audio_path is required", err))
		return
	}

	msgID, err := h.enqueue(c, pipeline.Request{
		AudioPath:  body.AudioPath,
		OutputPath: body.OutputPath,
		CallerID:   body.CallerID,
		Extension:  body.Extension,
	})
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, "CallHandler.Process", "failed to queue call", err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true, "message_id": msgID})
}
