// Package validator 基于 go-playground/validator 的请求校验组件，
// 支持中英文错误信息以及课程资料相关的自定义规则。
package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// 支持的语言。
const (
	LangEN = "en"
	LangZH = "zh"
)

// Validator 封装 validator.Validate 与翻译器。创建后只读，可并发使用。
type Validator struct {
	validate *validator.Validate
	trans    map[string]ut.Translator
}

// New 创建校验器，注册默认翻译、自定义规则及其翻译。
func New() *Validator {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		trans:    make(map[string]ut.Translator, 2),
	}

	// 错误中的字段名使用 json / form tag
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())

	enTrans, _ := uni.GetTranslator(LangEN)
	_ = en_translations.RegisterDefaultTranslations(v.validate, enTrans)
	v.trans[LangEN] = enTrans

	zhTrans, _ := uni.GetTranslator(LangZH)
	_ = zh_translations.RegisterDefaultTranslations(v.validate, zhTrans)
	v.trans[LangZH] = zhTrans

	v.registerCustomRules()
	v.registerCustomTranslations()

	return v
}

// Validate 校验结构体，返回原始的 validator 错误。
func (v *Validator) Validate(s any) error {
	return v.validate.Struct(s)
}

// ValidateWithLang 校验结构体并按语言翻译错误信息，校验通过返回 nil。
func (v *Validator) ValidateWithLang(s any, lang string) *ValidationErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewValidationError("unknown", "unknown", err.Error())
	}
	return v.translateErrors(fieldErrs, v.translator(lang))
}

// ValidateVar 校验单个变量。
func (v *Validator) ValidateVar(field any, tag string) error {
	return v.validate.Var(field, tag)
}

// translator 返回指定语言的翻译器，未知语言回退到英文。
func (v *Validator) translator(lang string) ut.Translator {
	if trans, ok := v.trans[NormalizeLang(lang)]; ok {
		return trans
	}
	return v.trans[LangEN]
}

// NormalizeLang 把 Accept-Language 风格的值归一为 LangEN / LangZH。
func NormalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if strings.HasPrefix(lang, "zh") {
		return LangZH
	}
	return LangEN
}

func (v *Validator) translateErrors(errs validator.ValidationErrors, trans ut.Translator) *ValidationErrors {
	result := &ValidationErrors{Errors: make([]FieldError, 0, len(errs))}
	for _, err := range errs {
		result.Errors = append(result.Errors, FieldError{
			Field:   err.Field(),
			Tag:     err.Tag(),
			Param:   err.Param(),
			Message: err.Translate(trans),
		})
	}
	return result
}
