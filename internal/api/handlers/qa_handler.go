package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cultiflow/voicedesk/internal/qastore"
	"github.com/cultiflow/voicedesk/internal/utils"
)

type QAHandler struct {
	store *qastore.Store
}

func NewQAHandler(store *qastore.Store) *QAHandler {
	return &QAHandler{store: store}
}

func (h *QAHandler) List(c *gin.Context) {
	language := c.Query("language")
	limit := 0
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := h.store.List(c.Request.Context(), language, limit)
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, "QAHandler.List", "failed to list pairs", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"pairs": rows})
}

func (h *QAHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("qa_id"), 10, 64)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "QAHandler.Get", "invalid qa id", err))
		return
	}

	pair, err := h.store.Get(c.Request.Context(), uint(id))
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, "QAHandler.Get", "failed to load pair", err))
		return
	}
	if pair == nil {
		writeError(c, utils.E(utils.CodeNotFound, "QAHandler.Get", "pair not found", nil))
		return
	}
	c.JSON(http.StatusOK, pair)
}

type UpsertPairRequest struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
	Language string `json:"language"`
}

func (h *QAHandler) Upsert(c *gin.Context) {
	var body UpsertPairRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "QAHandler.Upsert", "question and answer are required", err))
		return
	}
	if body.Language == "" {
		body.Language = "tw"
	}

	id, err := h.store.Upsert(c.Request.Context(), body.Question, body.Answer, body.Language)
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, "QAHandler.Upsert", "failed to save pair", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"qa_id": id})
}

func (h *QAHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("qa_id"), 10, 64)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "QAHandler.Delete", "invalid qa id", err))
		return
	}

	deleted, err := h.store.Delete(c.Request.Context(), uint(id))
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, "QAHandler.Delete", "failed to delete pair", err))
		return
	}
	if !deleted {
		writeError(c, utils.E(utils.CodeNotFound, "QAHandler.Delete", "pair not found", nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
