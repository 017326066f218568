package handlers

import (
	"net/http"

	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/upstream"
	"github.com/gin-gonic/gin"
)

type audioReq struct {
	Audio string `json:"audio" binding:"required"`
}

type ttsReq struct {
	Text  string `json:"text" binding:"required"`
	Voice string `json:"voice"`
}

type imageReq struct {
	Image string `json:"image" binding:"required"`
}

type processImageReq struct {
	Image     string `json:"image" binding:"required"`
	Operation string `json:"operation" binding:"required"`
}

type recipientReq struct {
	Recipient string `json:"recipient" binding:"required"`
	Message   string `json:"message"`
}

func (h *Handler) SpeechToText(c *gin.Context) {
	var req audioReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailError(c, badRequest(err))
		return
	}
	text, err := h.Media.Transcribe(c.Request.Context(), req.Audio)
	if err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, gin.H{"text": text, "status": "success"})
}

func (h *Handler) TextToSpeech(c *gin.Context) {
	var req ttsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailError(c, badRequest(err))
		return
	}
	speech, err := h.Media.Synthesize(c.Request.Context(), req.Text, req.Voice)
	if err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, gin.H{"audio": speech.Audio, "format": speech.Format, "status": "success"})
}

func (h *Handler) GenerateImage(c *gin.Context) {
	var req upstream.ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailError(c, badRequest(err))
		return
	}
	image, err := h.Media.GenerateImage(c.Request.Context(), req)
	if err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, gin.H{"image": image, "status": "success"})
}

func (h *Handler) AnalyzeImage(c *gin.Context) {
	var req imageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailError(c, badRequest(err))
		return
	}
	analysis, err := h.Media.AnalyzeImage(c.Request.Context(), req.Image)
	if err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, gin.H{"analysis": analysis, "status": "success"})
}

func (h *Handler) ProcessImage(c *gin.Context) {
	var req processImageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailError(c, badRequest(err))
		return
	}
	image, err := h.Media.ProcessImage(c.Request.Context(), req.Image, req.Operation)
	if err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, gin.H{"image": image, "status": "success"})
}

func (h *Handler) SendSMS(c *gin.Context) {
	var req recipientReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailError(c, badRequest(err))
		return
	}
	receipt, err := h.Notify.SendSMS(c.Request.Context(), req.Recipient, req.Message)
	if err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, receipt)
}

func (h *Handler) MakeCall(c *gin.Context) {
	var req recipientReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailError(c, badRequest(err))
		return
	}
	receipt, err := h.Notify.MakeCall(c.Request.Context(), req.Recipient, req.Message)
	if err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, receipt)
}

// HealthCheck always answers 200; a failing dependency shows up in the body.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, h.Prober.Check(c.Request.Context()))
}
