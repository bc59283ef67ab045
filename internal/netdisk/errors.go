package netdisk

import (
	"errors"
	"fmt"
)

// 流水线各步骤的固定错误,service层据此决定失败原因和用户提示
var (
	ErrInvalidLinkFormat   = errors.New("无效的分享链接格式")
	ErrAuthExpired         = errors.New("网盘登录凭证已失效")
	ErrNoFilesFound        = errors.New("分享中没有可转存的文件")
	ErrAllFilesSaveFailed  = errors.New("所有文件转存失败")
	ErrShareCreationFailed = errors.New("创建分享链接失败")
	ErrTaskTimeout         = errors.New("等待网盘任务超时")
	ErrTaskFailed          = errors.New("网盘任务执行失败")
)

// TransportError 网盘接口返回非预期HTTP状态
type TransportError struct {
	Status int
	Body   string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("网盘接口返回异常状态 %d: %s", e.Status, e.Body)
}

// ResponseParseError 网盘接口响应无法解析
type ResponseParseError struct {
	Cause error
	Body  string
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("解析网盘响应失败: %v, body: %s", e.Cause, e.Body)
}

func (e *ResponseParseError) Unwrap() error {
	return e.Cause
}
