package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"dreamjournal/internal/config"
	"dreamjournal/internal/models"
	"dreamjournal/internal/services"
	"dreamjournal/internal/storage"
)

func main() {
	// 简单命令行参数解析
	if len(os.Args) < 2 {
		fmt.Println("使用方法:")
		fmt.Println("  ./admin seed-admin <name> <email> <password> - 创建一个超级管理员账户")
		fmt.Println("  ./admin stats - 显示用户与梦境记录的统计数据")
		fmt.Println("  ./admin show-user <userID> - 显示用户及其好友关系集合")
		fmt.Println("  ./admin seed-dreams <userID> - 为用户生成示例梦境记录")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}

	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		log.Fatalf("数据库表迁移失败: %v", err)
	}

	userRepo := storage.NewGormUserRepository(db)
	dreamRepo := storage.NewGormDreamRepository(db)
	adminRepo := storage.NewGormAdminRepository(db)
	adminService := services.NewAdminService(adminRepo, userRepo, dreamRepo, cfg)
	dreamService := services.NewDreamService(dreamRepo)

	// 执行指定的命令
	switch os.Args[1] {
	case "seed-admin":
		if len(os.Args) < 5 {
			log.Fatalf("需要指定姓名、邮箱和密码")
		}
		seedAdmin(adminService, os.Args[2], os.Args[3], os.Args[4])

	case "stats":
		showStats(adminService)

	case "show-user":
		if len(os.Args) < 3 {
			log.Fatalf("需要指定用户ID")
		}
		userID := parseID(os.Args[2])
		showUser(userRepo, userID)

	case "seed-dreams":
		if len(os.Args) < 3 {
			log.Fatalf("需要指定用户ID")
		}
		userID := parseID(os.Args[2])
		seedDreams(userRepo, dreamService, userID)

	default:
		log.Fatalf("未知命令: %s", os.Args[1])
	}
}

func parseID(raw string) uint {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		log.Fatalf("无效的ID: %s", raw)
	}
	return uint(id)
}

func seedAdmin(adminService services.AdminService, name, email, password string) {
	admin, err := adminService.CreateAdmin(context.Background(), name, email, password, true)
	if err != nil {
		log.Fatalf("创建管理员失败: %v", err)
	}

	fmt.Println("管理员账户创建成功:")
	fmt.Println("--------------------------------------")
	fmt.Printf("ID: %d\n", admin.ID)
	fmt.Printf("姓名: %s\n", admin.Name)
	fmt.Printf("邮箱: %s\n", admin.Email)
	fmt.Printf("超级管理员: %v\n", admin.SuperAdmin)
}

func showStats(adminService services.AdminService) {
	stats, err := adminService.DashboardStats(context.Background())
	if err != nil {
		log.Fatalf("获取统计数据失败: %v", err)
	}

	fmt.Println("统计数据:")
	fmt.Println("--------------------------------------")
	fmt.Printf("用户总数: %d\n", stats.Users)
	fmt.Printf("梦境记录总数: %d\n", stats.Dreams)
}

func showUser(userRepo storage.UserRepository, userID uint) {
	user, err := userRepo.GetByID(context.Background(), userID)
	if err != nil {
		log.Fatalf("查找用户失败: %v", err)
	}

	fmt.Printf("用户 %d 信息:\n", userID)
	fmt.Println("--------------------------------------")
	fmt.Printf("姓名: %s\n", user.Name)
	fmt.Printf("邮箱: %s\n", user.Email)
	fmt.Printf("注册时间: %s\n", user.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("好友: %v\n", user.Friends.IDs())
	fmt.Printf("收到的待处理请求: %v\n", user.FriendRequests.IDs())
	fmt.Printf("发出的待处理请求: %v\n", user.SentRequests.IDs())
}

func seedDreams(userRepo storage.UserRepository, dreamService services.DreamService, userID uint) {
	if _, err := userRepo.GetByID(context.Background(), userID); err != nil {
		log.Fatalf("查找用户失败: %v", err)
	}

	rating4 := 4
	rating2 := 2
	samples := []services.CreateDreamInput{
		{
			Title:   "Flying over the city",
			Content: "I was soaring above skyscrapers, completely weightless.",
			Tags:    models.TagList{"flying", "lucid"},
			Mood:    string(models.MoodExciting),
			Rating:  &rating4,
		},
		{
			Title:   "Lost in a maze",
			Content: "Endless corridors that kept rearranging themselves.",
			Tags:    models.TagList{"maze", "recurring"},
			Mood:    string(models.MoodScary),
			Rating:  &rating2,
		},
		{
			Content: "A quiet beach at sunset, nothing happened and it was perfect.",
			Mood:    string(models.MoodHappy),
		},
	}

	for i := range samples {
		date := time.Now().AddDate(0, 0, -i)
		samples[i].DateOfDream = &date
		dream, err := dreamService.Create(context.Background(), userID, samples[i])
		if err != nil {
			log.Fatalf("创建示例梦境记录失败: %v", err)
		}
		fmt.Printf("已创建: #%d %q (%s)\n", dream.ID, dream.Title, dream.Mood)
	}

	fmt.Printf("为用户 %d 生成了 %d 条示例梦境记录\n", userID, len(samples))
}
