package errors

import "google.golang.org/grpc/codes"

// Tutor 服务错误码 (服务代码 21)
var (
	// 请求参数错误 (类别 01)
	ErrTutorInvalidUpload   = Register(New(MakeCode(ServiceTutor, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid upload request", "上传请求无效"))
	ErrTutorInvalidChat     = Register(New(MakeCode(ServiceTutor, CategoryRequest, 2), 400, codes.InvalidArgument, "Invalid chat request", "对话请求无效"))
	ErrTutorInvalidMaterial = Register(New(MakeCode(ServiceTutor, CategoryRequest, 3), 400, codes.InvalidArgument, "Unknown material type", "未知的资料类型"))

	// 资源错误 (类别 04)
	ErrTutorPaperNotFound    = Register(New(MakeCode(ServiceTutor, CategoryResource, 1), 404, codes.NotFound, "Paper not found", "课程不存在"))
	ErrTutorWeekNotFound     = Register(New(MakeCode(ServiceTutor, CategoryResource, 2), 404, codes.NotFound, "Week not found", "教学周不存在"))
	ErrTutorDocumentNotFound = Register(New(MakeCode(ServiceTutor, CategoryResource, 3), 404, codes.NotFound, "Document not found", "文档不存在"))

	// 查询与生成错误 (类别 07 / 11)
	ErrTutorRetrievalFailed  = Register(New(MakeCode(ServiceTutor, CategoryInternal, 1), 500, codes.Internal, "Could not retrieve materials", "无法检索课程资料"))
	ErrTutorGenerationFailed = Register(New(MakeCode(ServiceTutor, CategoryInternal, 2), 500, codes.Internal, "Error generating questions", "练习题生成失败"))
	ErrTutorUploadFailed     = Register(New(MakeCode(ServiceTutor, CategoryInternal, 3), 500, codes.Internal, "Upload failed", "上传失败"))
	ErrTutorChatTimeout      = Register(New(MakeCode(ServiceTutor, CategoryTimeout, 1), 408, codes.DeadlineExceeded, "Chat timeout", "对话超时"))

	// 外部服务错误
	ErrLLMUnavailable    = Register(New(MakeCode(ServiceThirdPartyLLM, CategoryNetwork, 1), 503, codes.Unavailable, "Language model unavailable", "语言模型服务不可用"))
	ErrParserUnavailable = Register(New(MakeCode(ServiceThirdPartyParser, CategoryNetwork, 1), 503, codes.Unavailable, "Document parser unavailable", "文档解析服务不可用"))
)
