// Package handler provides HTTP handlers for the tutor service.
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/pkg/httputils"
	"github.com/kart-io/tutor-x/internal/tutor/biz"
	"github.com/kart-io/tutor-x/pkg/llm"
	"github.com/kart-io/tutor-x/pkg/utils/errors"
	"github.com/kart-io/tutor-x/pkg/utils/validator"
)

// Uploader stores materials and triggers ingestion.
type Uploader interface {
	Upload(ctx context.Context, req *biz.UploadRequest) (*biz.UploadResult, error)
}

// Chatter answers a conversation with a token stream.
type Chatter interface {
	Chat(ctx context.Context, req *biz.ChatRequest) (<-chan llm.StreamChunk, error)
}

// QuestionGenerator produces practice questions for a week.
type QuestionGenerator interface {
	Generate(ctx context.Context, weekID string) (*biz.QuestionSet, error)
}

// Catalog reads and maintains papers, weeks and documents.
type Catalog interface {
	CreatePaper(ctx context.Context, title string, year int) (*model.Paper, error)
	ListPapers(ctx context.Context) ([]*model.Paper, error)
	GetPaper(ctx context.Context, id string) (*model.Paper, error)
	GetWeek(ctx context.Context, id string) (*model.Week, error)
	ListNotation(ctx context.Context, weekID string) ([]*model.NotationConfig, error)
	Reingest(ctx context.Context, documentID string) (*model.Document, error)
}

// StatusSubscriber streams document status changes of a week.
type StatusSubscriber interface {
	Subscribe(ctx context.Context, weekID string) (<-chan *model.StatusChangeEvent, error)
}

// TutorHandler handles tutor HTTP requests.
type TutorHandler struct {
	uploads   Uploader
	chat      Chatter
	questions QuestionGenerator
	catalog   Catalog
	events    StatusSubscriber
	validator *validator.Validator
	config    *Config
}

// NewTutorHandler creates a TutorHandler. config may be nil.
func NewTutorHandler(uploads Uploader, chat Chatter, questions QuestionGenerator, catalog Catalog, events StatusSubscriber, config *Config) *TutorHandler {
	if config == nil {
		config = DefaultConfig()
	}
	config.complete()
	return &TutorHandler{
		uploads:   uploads,
		chat:      chat,
		questions: questions,
		catalog:   catalog,
		events:    events,
		validator: validator.New(),
		config:    config,
	}
}

// bind 解析 JSON 请求体并按 Accept-Language 返回翻译后的校验错误。
func (h *TutorHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputils.WriteResponse(c, errors.ErrBadRequest.WithMessage(err.Error()), nil)
		return false
	}
	return h.validate(c, req)
}

func (h *TutorHandler) validate(c *gin.Context, req any) bool {
	if verrs := h.validator.ValidateWithLang(req, c.GetHeader("Accept-Language")); verrs.HasErrors() {
		httputils.WriteResponse(c, errors.ErrValidationFailed.WithMessage(verrs.First()), verrs)
		return false
	}
	return true
}
