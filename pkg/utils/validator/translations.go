package validator

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

func (v *Validator) registerCustomTranslations() {
	v.registerTranslations(LangEN, map[string]string{
		TagMaterialType: "{0} must be one of lecture, textbook or supervision",
		TagAcademicTerm: "{0} may only contain letters, digits, spaces, underscores and hyphens",
		TagFileName:     "{0} must be a plain file name without path separators",
		TagTrimmed:      "{0} must not have leading or trailing spaces",
	})
	v.registerTranslations(LangZH, map[string]string{
		TagMaterialType: "{0}必须是 lecture、textbook 或 supervision 之一",
		TagAcademicTerm: "{0}只能包含字母、数字、空格、下划线和连字符",
		TagFileName:     "{0}必须是不含路径分隔符的文件名",
		TagTrimmed:      "{0}不能有前导或尾随空格",
	})
}

func (v *Validator) registerTranslations(lang string, messages map[string]string) {
	trans, ok := v.trans[lang]
	if !ok {
		return
	}
	for tag, message := range messages {
		_ = v.validate.RegisterTranslation(tag, trans,
			func(t ut.Translator) error {
				return t.Add(tag, message, true)
			},
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T(fe.Tag(), fe.Field())
				return msg
			},
		)
	}
}
