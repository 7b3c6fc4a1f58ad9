package types

// RegisterRequest 注册请求.
type RegisterRequest struct {
	Username string `json:"username" rule:"required,min=3,max=30"`
	Email    string `json:"email"    rule:"required,email"`
	Password string `json:"password" rule:"required,min=6,max=72"`
}

// LoginRequest 登录请求.
type LoginRequest struct {
	Email    string `json:"email"    rule:"required,email"`
	Password string `json:"password" rule:"required"`
}

// AuthResponse 注册/登录成功后返回令牌与用户.
type AuthResponse struct {
	Success bool      `json:"success"`
	Token   string    `json:"token"`
	User    OwnerView `json:"user"`
}

// ProfileResponse 当前用户.
type ProfileResponse struct {
	Success bool      `json:"success"`
	User    OwnerView `json:"user"`
}
