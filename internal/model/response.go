package model

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应
type PageResponse struct {
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
	Data    interface{} `json:"data"`
}

// 响应码常量
const (
	CodeSuccess      = 200
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeNotFound     = 404
	CodeTooMany      = 429
	CodeServerError  = 500
)

// Success 成功响应
func Success(data interface{}) Response {
	return Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	}
}

// BadRequest 400错误
func BadRequest(message string) Response {
	return Response{
		Code:    CodeBadRequest,
		Message: message,
	}
}

// Unauthorized 401错误
func Unauthorized(message string) Response {
	return Response{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// NotFound 404错误
func NotFound(message string) Response {
	return Response{
		Code:    CodeNotFound,
		Message: message,
	}
}

// TooManyRequests 429错误
func TooManyRequests(message string) Response {
	return Response{
		Code:    CodeTooMany,
		Message: message,
	}
}

// ServerError 500错误
func ServerError(message string) Response {
	return Response{
		Code:    CodeServerError,
		Message: message,
	}
}

// PageData 分页数据响应
func PageData(total int64, page, perPage int, data interface{}) Response {
	return Response{
		Code:    CodeSuccess,
		Message: "success",
		Data: PageResponse{
			Total:   total,
			Page:    page,
			PerPage: perPage,
			Data:    data,
		},
	}
}

// LoginRequest 管理员登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}
