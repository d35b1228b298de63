package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jaki95/feedback-importer/internal/domain"
	"github.com/jaki95/feedback-importer/internal/job"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "feedback-batch-import",
	})
}

// upload accepts a multipart form with a "file" part and a "source" field
func (s *Server) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.Server.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, domain.CodeBadRequest,
				fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit))
			return
		}
		failErr(c, fmt.Errorf("%w: %v", ErrMissingFile, err))
		return
	}

	f, err := fh.Open()
	if err != nil {
		failErr(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		failErr(c, err)
		return
	}

	res, err := s.manager.Create(c.Request.Context(), fh.Filename, c.PostForm("source"), data)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusCreated, res)
}

func (s *Server) listBatches(c *gin.Context) {
	page := 1
	pageSize := job.DefaultPageSize

	if p := c.Query("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 && parsed <= job.MaxPageSize {
			pageSize = parsed
		}
	}

	respond(c, http.StatusOK, s.manager.List(page, pageSize))
}

func (s *Server) cancelBatch(c *gin.Context) {
	if err := s.manager.Cancel(c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Batch cancelled"})
}

func (s *Server) status(c *gin.Context) {
	st, err := s.manager.Status(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, st)
}

func (s *Server) dataPreview(c *gin.Context) {
	preview, err := s.manager.DataPreview(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, preview)
}

func (s *Server) buildPrompt(c *gin.Context) {
	var req domain.BuildPromptRequest
	if !bind(c, &req) {
		return
	}
	prompt, err := s.manager.BuildPrompt(c.Request.Context(), c.Param("id"), req.DedupColumns)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, prompt)
}

func (s *Server) updatePrompt(c *gin.Context) {
	var req domain.UpdatePromptRequest
	if !bind(c, &req) {
		return
	}
	text, err := s.manager.UpdatePrompt(c.Param("id"), req.PromptText)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, domain.UpdatePromptRequest{PromptText: text})
}

func (s *Server) promptText(c *gin.Context) {
	prompt, err := s.manager.PromptText(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, prompt)
}

func (s *Server) generateMapping(c *gin.Context) {
	var req domain.GenerateMappingRequest
	if !bind(c, &req) {
		return
	}
	if err := s.manager.GenerateMapping(c.Request.Context(), c.Param("id"), req.DedupColumns); err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusAccepted, gin.H{"message": "Mapping generation started"})
}

func (s *Server) mappingPreview(c *gin.Context) {
	preview, err := s.manager.MappingPreview(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, preview)
}

func (s *Server) confirmMapping(c *gin.Context) {
	var req domain.ConfirmMappingRequest
	if !bind(c, &req) {
		return
	}
	if len(req.ConfirmedMappings) == 0 {
		fail(c, http.StatusBadRequest, domain.CodeBadRequest, "confirmed_mappings is required")
		return
	}
	if err := s.manager.ConfirmMapping(c.Request.Context(), c.Param("id"), req); err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusAccepted, gin.H{"message": "Import started"})
}

func (s *Server) resultPreview(c *gin.Context) {
	preview, err := s.manager.ResultPreview(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, preview)
}

func (s *Server) processPipeline(c *gin.Context) {
	var req domain.PipelineRequest
	if !bind(c, &req) {
		return
	}
	if req.BatchID == "" {
		fail(c, http.StatusBadRequest, domain.CodeBadRequest, "batch_id is required")
		return
	}
	res, err := s.manager.ProcessPipeline(c.Request.Context(), req.BatchID)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusAccepted, res)
}

// bind decodes an optional JSON body; an empty body leaves req zero
func bind(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, http.StatusBadRequest, domain.CodeBadRequest, fmt.Sprintf("invalid request: %v", err))
		return false
	}
	return true
}
