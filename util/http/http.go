package http

import (
	"context"
	"time"
)

type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam 一次请求的参数。
// Body 可以是 nil、io.Reader、[]byte、string，其余类型按 JSON 发送；
// Response 为 nil 时丢弃响应体，*[]byte 接收原始字节，其余指针按 JSON 解码。
type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	Body       interface{}
	Response   interface{}

	Timeout time.Duration
	// MaxResponseBytes 最多读取的响应字节数，0 表示 defaultMaxResponseBytes
	MaxResponseBytes int64
}
