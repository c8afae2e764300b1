package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/deLKM/Genteblog/internal/config"
	"github.com/deLKM/Genteblog/internal/db"
	"github.com/deLKM/Genteblog/internal/service"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("读取配置失败: ", err)
	}

	email := flag.String("email", cfg.AdminEmail, "管理员邮箱，默认读取 ADMIN_EMAIL")
	password := flag.String("password", cfg.AdminPassword, "管理员密码，默认读取 ADMIN_PASSWORD")
	name := flag.String("name", "admin", "显示名称")
	flag.Parse()
	if *email == "" || *password == "" {
		log.Fatal("需要 -email 与 -password，或设置 ADMIN_EMAIL / ADMIN_PASSWORD")
	}

	ctx := context.Background()
	// 账号表始终在关系库里，redis 后端时落在 DATABASE_PATH
	dbCfg := db.Config{Driver: db.DriverSQLite, Path: cfg.DatabasePath}
	if cfg.StoreBackend == config.BackendPostgres {
		dbCfg = db.Config{Driver: db.DriverPostgres, DSN: cfg.DatabaseDSN}
	}
	s, err := db.Open(ctx, dbCfg)
	if err != nil {
		log.Fatal("数据库初始化失败: ", err)
	}
	defer s.Close()

	account, err := service.NewAuthService(s.Gorm()).EnsureAccount(ctx, *email, *password, *name)
	if err != nil {
		log.Fatal("创建管理员失败: ", err)
	}
	fmt.Printf("管理员账号就绪: %s (uid %s)\n", account.Email, account.UID)
}
