package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestMakeCode(t *testing.T) {
	tests := []struct {
		service, category, sequence int
		want                        int
	}{
		{0, 0, 0, 0},
		{ServiceCommon, CategoryRequest, 1, 1001},
		{ServiceTutor, CategoryResource, 2, 2104002},
		{99, 99, 999, 9999999},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d-%d-%d", tt.service, tt.category, tt.sequence), func(t *testing.T) {
			got := MakeCode(tt.service, tt.category, tt.sequence)
			assert.Equal(t, tt.want, got)

			s, c, q := ParseCode(got)
			assert.Equal(t, tt.service, s)
			assert.Equal(t, tt.category, c)
			assert.Equal(t, tt.sequence, q)
		})
	}
}

func TestErrnoWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ErrDatabase.WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrDatabase)
	assert.Contains(t, err.Error(), "connection refused")
	// the registered value is not mutated
	assert.Nil(t, ErrDatabase.Unwrap())
}

func TestErrnoMessage(t *testing.T) {
	assert.Equal(t, "Week not found", ErrTutorWeekNotFound.Message("en"))
	assert.Equal(t, "教学周不存在", ErrTutorWeekNotFound.Message("zh-CN"))

	custom := ErrInvalidParam.WithMessagef("week %d out of range", 40)
	assert.Equal(t, "week 40 out of range", custom.MessageEN)
	assert.Equal(t, ErrInvalidParam.Code, custom.Code)
}

func TestErrnoStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrTutorDocumentNotFound.HTTPStatus())
	assert.Equal(t, codes.NotFound, ErrTutorDocumentNotFound.GRPCStatus())
	assert.Equal(t, http.StatusInternalServerError, (&Errno{Code: 1}).HTTPStatus())
	assert.Equal(t, codes.Internal, (&Errno{Code: 1}).GRPCStatus())
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("retrieve: %w", ErrTutorRetrievalFailed)
	assert.Equal(t, ErrTutorRetrievalFailed.Code, FromError(wrapped).Code)
	assert.True(t, IsCode(wrapped, ErrTutorRetrievalFailed.Code))

	plain := fmt.Errorf("boom")
	assert.Equal(t, ErrInternal.Code, FromError(plain).Code)
	assert.Equal(t, -1, GetCode(plain))
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(New(OK.Code, http.StatusOK, codes.OK, "dup", "重复"))
	})

	got, ok := Lookup(ErrTutorPaperNotFound.Code)
	assert.True(t, ok)
	assert.Same(t, ErrTutorPaperNotFound, got)
}
