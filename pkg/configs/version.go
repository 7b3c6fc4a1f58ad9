package configs

// AppVersion 应用版本，构建时可通过 -ldflags "-X github.com/yeisme/sharevault/pkg/configs.AppVersion=x.y.z" 覆盖.
var AppVersion = "0.1.0"
