// Package types 定义 HTTP 请求与响应结构.
package types

// SuccessResponse 只带成功标记的响应.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse 所有错误响应的统一结构.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HealthResponse 健康检查结果，Components 为各组件状态.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}
