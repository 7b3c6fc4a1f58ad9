// Package main 启动应用程序
package main

import (
	"os"

	"github.com/yeisme/sharevault/pkg/cmd"
)

//	@title			ShareVault API
//	@version		1.0
//	@description	ShareVault 是一个资源共享服务，用户上传文件并附带标题、描述与标签，所有人都可以检索.

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme
//	@contact.email	yefun2004@gmail.com.

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
