package handler

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/tutor-x/internal/model"
	"github.com/kart-io/tutor-x/internal/pkg/httputils"
	"github.com/kart-io/tutor-x/internal/tutor/biz"
	logctx "github.com/kart-io/tutor-x/pkg/infra/logger"
	"github.com/kart-io/tutor-x/pkg/utils/errors"
)

// UploadForm multipart 上传表单的普通字段，文件放在 files 字段。
type UploadForm struct {
	PaperID    string `form:"paperId" json:"paperId" validate:"required"`
	Term       string `form:"term" json:"term" validate:"required,academic_term"`
	WeekNumber int    `form:"weekNumber" json:"weekNumber" validate:"required,min=1,max=52"`
	Type       string `form:"type" json:"type" validate:"required,material_type"`
}

type uploadFileName struct {
	Name string `json:"file" validate:"required,filename,max=255"`
}

// Upload stores course materials for one week and triggers ingestion.
// Each file gets its own result; one failure does not abort the others.
func (h *TutorHandler) Upload(c *gin.Context) {
	var form UploadForm
	if err := c.ShouldBind(&form); err != nil {
		httputils.WriteResponse(c, errors.ErrTutorInvalidUpload.WithMessage(err.Error()), nil)
		return
	}
	if !h.validate(c, &form) {
		return
	}

	mf, err := c.MultipartForm()
	if err != nil {
		httputils.WriteResponse(c, errors.ErrTutorInvalidUpload.WithMessage("Expected multipart form data"), nil)
		return
	}
	headers := mf.File["files"]
	if len(headers) == 0 {
		httputils.WriteResponse(c, errors.ErrTutorInvalidUpload.WithMessage("Missing required fields"), nil)
		return
	}
	if len(headers) > h.config.MaxFiles {
		httputils.WriteResponse(c, errors.ErrTutorInvalidUpload.WithMessagef("At most %d files per upload", h.config.MaxFiles), nil)
		return
	}

	files := make([]*biz.UploadFile, 0, len(headers))
	for _, fh := range headers {
		if !h.validate(c, &uploadFileName{Name: fh.Filename}) {
			return
		}
		if fh.Size > h.config.MaxFileSize {
			httputils.WriteResponse(c, errors.ErrRequestTooLarge.WithMessagef("%s exceeds %d bytes", fh.Filename, h.config.MaxFileSize), nil)
			return
		}
		data, err := readFile(fh)
		if err != nil {
			httputils.WriteResponse(c, errors.ErrTutorInvalidUpload.WithCause(err), nil)
			return
		}
		files = append(files, &biz.UploadFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	result, err := h.uploads.Upload(c.Request.Context(), &biz.UploadRequest{
		PaperID:    form.PaperID,
		Term:       form.Term,
		WeekNumber: form.WeekNumber,
		Type:       model.MaterialType(form.Type),
		Files:      files,
	})
	if err != nil {
		logctx.FromContext(c.Request.Context()).Warnw("upload failed", "paper_id", form.PaperID, "error", err.Error())
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, result)
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}
