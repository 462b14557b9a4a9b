package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(New(0, http.StatusOK, codes.OK, "Success", "成功"))

// 通用请求错误 (类别 01)
var (
	ErrBadRequest       = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0), http.StatusBadRequest, codes.InvalidArgument, "Bad request", "请求错误"))
	ErrInvalidParam     = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid parameter", "参数无效"))
	ErrMissingParam     = Register(New(MakeCode(ServiceCommon, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Missing required parameter", "缺少必需参数"))
	ErrValidationFailed = Register(New(MakeCode(ServiceCommon, CategoryRequest, 4), http.StatusBadRequest, codes.InvalidArgument, "Validation failed", "验证失败"))
	ErrRequestTooLarge  = Register(New(MakeCode(ServiceCommon, CategoryRequest, 5), http.StatusRequestEntityTooLarge, codes.InvalidArgument, "Request entity too large", "请求体过大"))
)

// 通用资源与服务错误
var (
	ErrNotFound           = Register(New(MakeCode(ServiceCommon, CategoryResource, 0), http.StatusNotFound, codes.NotFound, "Resource not found", "资源不存在"))
	ErrConflict           = Register(New(MakeCode(ServiceCommon, CategoryConflict, 0), http.StatusConflict, codes.AlreadyExists, "Resource conflict", "资源冲突"))
	ErrTooManyRequests    = Register(New(MakeCode(ServiceCommon, CategoryRateLimit, 0), http.StatusTooManyRequests, codes.ResourceExhausted, "Too many requests", "请求过于频繁"))
	ErrInternal           = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0), http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))
	ErrServiceUnavailable = Register(New(MakeCode(ServiceCommon, CategoryNetwork, 0), http.StatusServiceUnavailable, codes.Unavailable, "Service unavailable", "服务不可用"))
	ErrTimeout            = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 0), http.StatusGatewayTimeout, codes.DeadlineExceeded, "Request timeout", "请求超时"))
)

// 基础设施错误
var (
	ErrDatabase = Register(New(MakeCode(ServiceInfraDB, CategoryDatabase, 0), http.StatusInternalServerError, codes.Internal, "Database error", "数据库错误"))
	ErrCache    = Register(New(MakeCode(ServiceInfraCache, CategoryCache, 0), http.StatusInternalServerError, codes.Internal, "Cache error", "缓存错误"))
	ErrQueue    = Register(New(MakeCode(ServiceInfraMQ, CategoryNetwork, 0), http.StatusServiceUnavailable, codes.Unavailable, "Message queue error", "消息队列错误"))
)
