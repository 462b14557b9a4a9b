package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/tutor-x/internal/pkg/httputils"
)

// CreatePaperBody 新建课程请求体。
type CreatePaperBody struct {
	Title string `json:"title" validate:"required,max=255"`
	Year  int    `json:"year" validate:"required,min=1900,max=2100"`
}

// CreatePaper creates a paper.
func (h *TutorHandler) CreatePaper(c *gin.Context) {
	var body CreatePaperBody
	if !h.bind(c, &body) {
		return
	}
	paper, err := h.catalog.CreatePaper(c.Request.Context(), body.Title, body.Year)
	httputils.WriteResponse(c, err, paper)
}

// ListPapers lists all papers.
func (h *TutorHandler) ListPapers(c *gin.Context) {
	papers, err := h.catalog.ListPapers(c.Request.Context())
	httputils.WriteResponse(c, err, papers)
}

// GetPaper returns a paper with its weeks.
func (h *TutorHandler) GetPaper(c *gin.Context) {
	paper, err := h.catalog.GetPaper(c.Request.Context(), c.Param("id"))
	httputils.WriteResponse(c, err, paper)
}

// GetWeek returns a week with its documents.
func (h *TutorHandler) GetWeek(c *gin.Context) {
	week, err := h.catalog.GetWeek(c.Request.Context(), c.Param("id"))
	httputils.WriteResponse(c, err, week)
}

// ListNotation returns the notation table of a week.
func (h *TutorHandler) ListNotation(c *gin.Context) {
	rows, err := h.catalog.ListNotation(c.Request.Context(), c.Param("id"))
	httputils.WriteResponse(c, err, rows)
}

// Reingest re-runs ingestion for a document.
func (h *TutorHandler) Reingest(c *gin.Context) {
	doc, err := h.catalog.Reingest(c.Request.Context(), c.Param("id"))
	httputils.WriteResponse(c, err, doc)
}
