package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadForm struct {
	PaperID    string `json:"paperId" validate:"required"`
	Term       string `json:"term" validate:"required,academic_term"`
	WeekNumber int    `json:"weekNumber" validate:"required,min=1"`
	Type       string `json:"type" validate:"required,material_type"`
	FileName   string `json:"fileName" validate:"omitempty,filename"`
}

func validForm() uploadForm {
	return uploadForm{PaperID: "p1", Term: "Michaelmas 2024", WeekNumber: 3, Type: "lecture", FileName: "notes.pdf"}
}

func TestValidate_OK(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(validForm()))
	assert.Nil(t, v.ValidateWithLang(validForm(), LangEN))
}

func TestValidate_CustomRules(t *testing.T) {
	v := New()

	tests := []struct {
		name   string
		mutate func(f *uploadForm)
		field  string
	}{
		{"bad type", func(f *uploadForm) { f.Type = "video" }, "type"},
		{"term with slash", func(f *uploadForm) { f.Term = "../etc" }, "term"},
		{"week zero", func(f *uploadForm) { f.WeekNumber = 0 }, "weekNumber"},
		{"file with path", func(f *uploadForm) { f.FileName = "a/b.pdf" }, "fileName"},
		{"dot dot", func(f *uploadForm) { f.FileName = ".." }, "fileName"},
		{"missing paper", func(f *uploadForm) { f.PaperID = "" }, "paperId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(&f)
			errs := v.ValidateWithLang(f, LangEN)
			require.True(t, errs.HasErrors())
			assert.Contains(t, errs.ByField(), tt.field)
		})
	}
}

func TestValidateWithLang_Translations(t *testing.T) {
	v := New()
	f := validForm()
	f.Type = "video"

	en := v.ValidateWithLang(f, "en-GB")
	require.NotNil(t, en)
	assert.Equal(t, "type must be one of lecture, textbook or supervision", en.First())
	assert.Contains(t, en.Error(), "validation failed: ")

	zh := v.ValidateWithLang(f, "zh-CN")
	require.NotNil(t, zh)
	assert.Contains(t, zh.First(), "lecture、textbook 或 supervision")
}

func TestNormalizeLang(t *testing.T) {
	assert.Equal(t, LangZH, NormalizeLang("zh-CN"))
	assert.Equal(t, LangEN, NormalizeLang(""))
	assert.Equal(t, LangEN, NormalizeLang("fr"))
}

func TestValidationErrors_Nil(t *testing.T) {
	var errs *ValidationErrors
	assert.False(t, errs.HasErrors())
	assert.Empty(t, errs.First())
	assert.Nil(t, errs.ByField())
	assert.Empty(t, errs.Error())
}
