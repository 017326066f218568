package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FrK06/web-rag-original/internal/chat"
	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/orchestrator"
	"github.com/gin-gonic/gin"
)

type chatReq struct {
	Content             string      `json:"content"`
	ConversationHistory []chat.Turn `json:"conversation_history"`
	Mode                string      `json:"mode"`
	ThreadID            string      `json:"thread_id"`
	AttachedImages      []string    `json:"attached_images"`
	IncludeReasoning    bool        `json:"include_reasoning"`
}

func (r chatReq) toRequest() orchestrator.Request {
	return orchestrator.Request{
		Content:             r.Content,
		ConversationHistory: r.ConversationHistory,
		Mode:                r.Mode,
		ThreadID:            strings.TrimSpace(r.ThreadID),
		AttachedImages:      r.AttachedImages,
		IncludeReasoning:    r.IncludeReasoning,
	}
}

// Chat runs one orchestrated turn synchronously.
func (h *Handler) Chat(c *gin.Context) {
	uid, ok := owner(c)
	if !ok {
		return
	}
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailError(c, badRequest(err))
		return
	}

	env, err := h.Orchestrator.Chat(c.Request.Context(), uid, req.toRequest())
	if err != nil {
		h.chatFailed(c, err)
		return
	}
	common.OK(c, env)
}

// chatFailed keeps the thread id in the body so the client does not lose
// the turn it already stored.
func (h *Handler) chatFailed(c *gin.Context, err error) {
	status, code := common.Classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && gin.Mode() == gin.ReleaseMode {
		msg = http.StatusText(status)
	}
	body := gin.H{
		"code":       code,
		"message":    "Error processing message",
		"error":      msg,
		"status":     "error",
		"tools_used": []string{},
		"image_urls": []string{},
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	var te *orchestrator.TurnError
	if errors.As(err, &te) {
		body["thread_id"] = te.ThreadID
	}
	h.logFor(c).WithError(err).Warn("chat: turn failed")
	c.JSON(status, body)
}

func (h *Handler) SubmitChatJob(c *gin.Context) {
	uid, ok := owner(c)
	if !ok {
		return
	}
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailError(c, badRequest(err))
		return
	}

	job, created, err := h.Jobs.Submit(c.Request.Context(), uid, req.toRequest(), c.GetHeader("Idempotency-Key"))
	if err != nil {
		common.FailError(c, err)
		return
	}
	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"job_id": job.ID, "status": job.Status})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	uid, ok := owner(c)
	if !ok {
		return
	}
	v, err := h.Jobs.Get(c.Request.Context(), uid, c.Param("job_id"))
	if err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, gin.H{"job": v})
}

type storeMessageReq struct {
	Message             string      `json:"message" binding:"required"`
	ThreadID            string      `json:"thread_id"`
	ConversationHistory []chat.Turn `json:"conversation_history"`
}

type renameReq struct {
	Name string `json:"name"`
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return n
}

func (h *Handler) ListConversations(c *gin.Context) {
	uid, ok := owner(c)
	if !ok {
		return
	}
	threads, err := h.Threads.List(c.Request.Context(), uid, queryInt(c, "limit", 20), queryInt(c, "skip", 0))
	if err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, gin.H{"threads": threads, "count": len(threads), "status": "success"})
}

func (h *Handler) StoreMessage(c *gin.Context) {
	uid, ok := owner(c)
	if !ok {
		return
	}
	var req storeMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailError(c, badRequest(err))
		return
	}
	res, err := h.Threads.Store(c.Request.Context(), uid, strings.TrimSpace(req.ThreadID), req.Message, req.ConversationHistory)
	if err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, gin.H{"thread_id": res.ThreadID, "history": res.History, "status": "success"})
}

func (h *Handler) ConversationHistory(c *gin.Context) {
	uid, ok := owner(c)
	if !ok {
		return
	}
	threadID := c.Param("thread_id")
	msgs, err := h.Threads.History(c.Request.Context(), uid, threadID, queryInt(c, "limit", 100))
	if err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, gin.H{"thread_id": threadID, "messages": msgs, "count": len(msgs)})
}

func (h *Handler) RenameConversation(c *gin.Context) {
	uid, ok := owner(c)
	if !ok {
		return
	}
	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailError(c, badRequest(err))
		return
	}
	threadID := c.Param("thread_id")
	if err := h.Threads.Rename(c.Request.Context(), uid, threadID, req.Name); err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, gin.H{"thread_id": threadID, "name": strings.TrimSpace(req.Name), "status": "renamed"})
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	uid, ok := owner(c)
	if !ok {
		return
	}
	threadID := c.Param("thread_id")
	if err := h.Threads.Delete(c.Request.Context(), uid, threadID); err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, gin.H{"thread_id": threadID, "status": "deleted"})
}
