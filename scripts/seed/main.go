// 演示数据生成器：创建几个账号、文章、互动和评论。
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/deLKM/Genteblog/internal/config"
	"github.com/deLKM/Genteblog/internal/db"
	"github.com/deLKM/Genteblog/internal/kvstore"
	"github.com/deLKM/Genteblog/internal/model"
	"github.com/deLKM/Genteblog/internal/service"
	"github.com/deLKM/Genteblog/internal/store"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

const demoPassword = "genteblog123"

type demoUser struct {
	email string
	name  string
}

var demoUsers = []demoUser{
	{email: "writer@example.com", name: "写作者"},
	{email: "reader@example.com", name: "读者"},
}

type demoPost struct {
	title    string
	content  string
	category string
	tags     string
	featured bool
	draft    bool
}

var demoPosts = []demoPost{
	{
		title:    "Go 并发入门",
		content:  "## goroutine\n\n用 `go` 关键字启动 goroutine，用 channel 传递数据。\n\n```go\nch := make(chan int)\n```",
		category: "技术",
		tags:     "Go,并发",
		featured: true,
	},
	{
		title:    "周末读书笔记",
		content:  "这周读完了一本关于长期主义的书，记录几个要点：\n\n1. 复利需要时间\n2. 写作是最好的复盘",
		category: "生活",
		tags:     "读书,思考",
	},
	{
		title:    "用 Redis 做乐观锁",
		content:  "WATCH 读到的键，MULTI/EXEC 提交，冲突时重试。",
		category: "技术",
		tags:     "Redis,数据库",
	},
	{
		title:    "还没写完的草稿",
		content:  "想写一写最近的开源项目，先列个提纲。",
		category: "随笔",
		draft:    true,
	},
}

type seedSummary struct {
	Users        int
	Posts        int
	Interactions int
	Comments     int
	Skipped      bool
}

// seed 写入演示数据；作者已有已发布文章时不再重复生成。
func seed(ctx context.Context, docs store.Store, accounts *gorm.DB) (seedSummary, error) {
	var summary seedSummary
	auth := service.NewAuthService(accounts)
	posts := service.NewPostService(docs)
	comments := service.NewCommentService(docs)

	uids := make([]string, 0, len(demoUsers))
	for _, u := range demoUsers {
		account, err := auth.EnsureAccount(ctx, u.email, demoPassword, u.name)
		if err != nil {
			return summary, fmt.Errorf("create user %s: %w", u.email, err)
		}
		uids = append(uids, account.UID)
	}
	summary.Users = len(uids)
	writer, reader := uids[0], uids[1]

	existing, err := posts.GetPublishedPosts(ctx, writer)
	if err != nil {
		return summary, err
	}
	if len(existing) > 0 {
		summary.Skipped = true
		return summary, nil
	}

	for i, p := range demoPosts {
		post, err := posts.SavePost(ctx, service.PostInput{
			Title:    p.title,
			Content:  p.content,
			Category: p.category,
			Tags:     p.tags,
			Featured: p.featured,
		}, writer, p.draft)
		if err != nil {
			return summary, fmt.Errorf("create post %q: %w", p.title, err)
		}
		summary.Posts++
		if p.draft {
			continue
		}

		kinds := []string{model.InteractionLike}
		if i%2 == 0 {
			kinds = append(kinds, model.InteractionBookmark)
		}
		for _, kind := range kinds {
			if _, err := posts.HandlePostInteraction(ctx, post.ID, reader, kind); err != nil {
				return summary, err
			}
			summary.Interactions++
		}

		top, err := comments.Create(ctx, post.ID, reader, "写得很清楚，收藏了。", nil)
		if err != nil {
			return summary, err
		}
		if _, err := comments.Create(ctx, post.ID, writer, "谢谢支持！", &top.ID); err != nil {
			return summary, err
		}
		summary.Comments += 2
	}
	return summary, nil
}

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("读取配置失败: ", err)
	}
	ctx := context.Background()

	var docs store.Store
	var accounts *gorm.DB
	switch cfg.StoreBackend {
	case config.BackendRedis:
		kv, err := kvstore.Open(ctx, kvstore.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB, Prefix: cfg.Redis.Prefix})
		if err != nil {
			log.Fatal("连接 redis 失败: ", err)
		}
		defer kv.Close()
		lite, err := db.Open(ctx, db.Config{Driver: db.DriverSQLite, Path: cfg.DatabasePath})
		if err != nil {
			log.Fatal("数据库初始化失败: ", err)
		}
		defer lite.Close()
		docs, accounts = kv, lite.Gorm()
	default:
		dbCfg := db.Config{Driver: db.DriverSQLite, Path: cfg.DatabasePath}
		if cfg.StoreBackend == config.BackendPostgres {
			dbCfg = db.Config{Driver: db.DriverPostgres, DSN: cfg.DatabaseDSN}
		}
		s, err := db.Open(ctx, dbCfg)
		if err != nil {
			log.Fatal("数据库初始化失败: ", err)
		}
		defer s.Close()
		docs, accounts = s, s.Gorm()
	}

	fmt.Println("开始生成演示数据...")
	summary, err := seed(ctx, docs, accounts)
	if err != nil {
		log.Fatal("生成演示数据失败: ", err)
	}
	if summary.Skipped {
		fmt.Println("演示文章已存在，跳过生成")
		return
	}
	fmt.Println("演示数据生成完成！")
	fmt.Printf("账号: %d 个 (密码: %s)\n", summary.Users, demoPassword)
	fmt.Printf("文章: %d 篇，互动: %d 次，评论: %d 条\n", summary.Posts, summary.Interactions, summary.Comments)
}
