package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Skufu/bloodpanel/internal/catalog"
	"github.com/Skufu/bloodpanel/internal/panel"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	healthMessage   = "Blood Test Analysis API is running"
	parsePDFMessage = "PDF parsing is currently handled on the frontend. Please use the web interface."
)

type handlers struct {
	predictor Predictor
	timeout   time.Duration
	log       logrus.FieldLogger
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": healthMessage})
}

func (h *handlers) parsePDF(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": parsePDFMessage})
}

func (h *handlers) analyze(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		h.fail(c, http.StatusBadRequest, "Invalid input: "+err.Error(), err)
		return
	}

	input, err := panel.Parse(body)
	if err != nil {
		var missing *panel.MissingFieldError
		if errors.As(err, &missing) {
			h.fail(c, http.StatusBadRequest, missing.Error(), err)
			return
		}
		h.fail(c, http.StatusBadRequest, "Invalid input: "+err.Error(), err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	label, err := h.predictor.Predict(ctx, input)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Server error: "+err.Error(), err)
		return
	}

	disease, cause, err := catalog.Resolve(label)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Server error: "+err.Error(), err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"request_id":  c.GetString("request_id"),
		"result_code": label,
	}).Debug("panel classified")
	c.JSON(http.StatusOK, panel.NewResult(input, label, disease, cause))
}

func (h *handlers) fail(c *gin.Context, status int, message string, err error) {
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": message})
}
