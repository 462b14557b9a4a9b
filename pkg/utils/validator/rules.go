package validator

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// 自定义校验 tag。
const (
	TagMaterialType = "material_type" // lecture | textbook | supervision
	TagAcademicTerm = "academic_term" // 学期名，例如 "Michaelmas 2024"
	TagFileName     = "filename"      // 不含路径分隔符的文件名
	TagTrimmed      = "trimmed"       // 无首尾空白
)

var (
	materialTypes = map[string]struct{}{"lecture": {}, "textbook": {}, "supervision": {}}
	termRegex     = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} _-]{0,63}$`)
)

func (v *Validator) registerCustomRules() {
	_ = v.validate.RegisterValidation(TagMaterialType, validateMaterialType)
	_ = v.validate.RegisterValidation(TagAcademicTerm, validateAcademicTerm)
	_ = v.validate.RegisterValidation(TagFileName, validateFileName)
	_ = v.validate.RegisterValidation(TagTrimmed, validateTrimmed)
}

// 空值统一交给 required 处理。

func validateMaterialType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, ok := materialTypes[value]
	return ok
}

// 学期会成为存储路径的一段，只允许字母、数字、空格、下划线和连字符。
func validateAcademicTerm(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return termRegex.MatchString(value)
}

func validateFileName(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	if value == "." || value == ".." || strings.ContainsAny(value, `/\`) {
		return false
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return false
		}
	}
	return path.Base(value) == value
}

func validateTrimmed(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == strings.TrimSpace(value)
}
