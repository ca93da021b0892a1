package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dreamjournal/internal/config"
	"dreamjournal/internal/email"
	"dreamjournal/internal/handlers/apiserver"
	appKafka "dreamjournal/internal/kafka"
	kafkahandlers "dreamjournal/internal/kafka/handlers"
	"dreamjournal/internal/middleware"
	appRedis "dreamjournal/internal/redis"
	"dreamjournal/internal/services"
	"dreamjournal/internal/storage"
	"dreamjournal/internal/websocket"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redisDriver "github.com/redis/go-redis/v9"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	log.Println("API 服务器配置加载成功。")

	// 2. 初始化数据库连接
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	log.Println("API 服务器数据库连接成功。")

	if err := storage.AutoMigrateTables(db); err != nil {
		log.Printf("警告：API 服务器数据库表迁移可能失败: %v", err)
	} else {
		log.Println("API 服务器数据库表迁移成功。")
	}

	// 3. 初始化 Redis Client（JWT 黑名单）
	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("无法连接到 Redis: %v", err)
	}
	log.Println("成功连接到 Redis")

	tokenBlacklistService := appRedis.NewRedisTokenBlacklist(redisClient)

	// 4. 初始化 Repositories
	userRepo := storage.NewGormUserRepository(db)
	dreamRepo := storage.NewGormDreamRepository(db)
	adminRepo := storage.NewGormAdminRepository(db)

	// 5. 初始化 Kafka Producer（好友协议通知事件）
	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建 Kafka 生产者: %v", err)
	}
	defer kfkProducer.Close()
	log.Println("Kafka 生产者初始化成功 (API Server)。")

	// 6. 初始化 Services
	authService := services.NewAuthService(userRepo, cfg)
	userService := services.NewUserService(userRepo)
	dreamService := services.NewDreamService(dreamRepo)
	friendService := services.NewFriendService(userRepo, dreamRepo, kfkProducer, cfg.Kafka)
	adminService := services.NewAdminService(adminRepo, userRepo, dreamRepo, cfg)

	// 7. 初始化 WebSocket Hub（在线通知推送）
	hub := websocket.NewHub()
	go hub.Run()

	// 8. 初始化 Handlers
	authHandler := apiserver.NewAuthHandler(authService, tokenBlacklistService)
	userHandler := apiserver.NewUserHandler(userService)
	dreamHandler := apiserver.NewDreamHandler(dreamService)
	friendHandler := apiserver.NewFriendHandler(friendService, userService)
	adminHandler := apiserver.NewAdminHandler(adminService)

	// 9. 设置 HTTP 路由
	r := mux.NewRouter()

	// 9.1 认证路由（公开）
	authRouter := r.PathPrefix("/api/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)

	// 9.2 用户 API 子路由（需要用户认证）
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(func(next http.Handler) http.Handler {
		return middleware.AuthMiddleware(next, cfg.Auth, tokenBlacklistService)
	})

	// 登出需要认证来获取 JTI
	apiRouter.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)

	// 用户资料路由
	apiRouter.HandleFunc("/user/profile", userHandler.GetProfile).Methods(http.MethodGet)
	apiRouter.HandleFunc("/user/profile", userHandler.UpdateProfile).Methods(http.MethodPut)
	apiRouter.HandleFunc("/user/findByEmail/{email}", userHandler.FindByEmail).Methods(http.MethodGet)

	// 梦境记录路由
	apiRouter.HandleFunc("/dreams", dreamHandler.Create).Methods(http.MethodPost)
	apiRouter.HandleFunc("/dreams", dreamHandler.List).Methods(http.MethodGet)
	apiRouter.HandleFunc("/dreams/{dreamID:[0-9]+}", dreamHandler.Get).Methods(http.MethodGet)
	apiRouter.HandleFunc("/dreams/{dreamID:[0-9]+}", dreamHandler.Update).Methods(http.MethodPut)
	apiRouter.HandleFunc("/dreams/{dreamID:[0-9]+}", dreamHandler.Delete).Methods(http.MethodDelete)

	// 好友关系路由
	friendRouter := apiRouter.PathPrefix("/friends").Subrouter()
	friendRouter.HandleFunc("", friendHandler.ListFriends).Methods(http.MethodGet)
	friendRouter.HandleFunc("/search", friendHandler.SearchUsers).Methods(http.MethodGet)
	friendRouter.HandleFunc("/requests", friendHandler.ListIncomingRequests).Methods(http.MethodGet)
	friendRouter.HandleFunc("/sent", friendHandler.ListSentRequests).Methods(http.MethodGet)
	friendRouter.HandleFunc("/request/{userID:[0-9]+}", friendHandler.SendRequest).Methods(http.MethodPost)
	friendRouter.HandleFunc("/accept/{userID:[0-9]+}", friendHandler.AcceptRequest).Methods(http.MethodPost)
	friendRouter.HandleFunc("/reject/{userID:[0-9]+}", friendHandler.RejectRequest).Methods(http.MethodPost)
	friendRouter.HandleFunc("/cancel/{userID:[0-9]+}", friendHandler.CancelRequest).Methods(http.MethodPost)
	friendRouter.HandleFunc("/progress/{userID:[0-9]+}", friendHandler.FriendProgress).Methods(http.MethodGet)
	friendRouter.HandleFunc("/{userID:[0-9]+}", friendHandler.RemoveFriend).Methods(http.MethodDelete)

	// 9.3 管理端路由
	r.HandleFunc("/api/admin/login", adminHandler.Login).Methods(http.MethodPost)

	adminRouter := r.PathPrefix("/api/admin").Subrouter()
	adminRouter.Use(func(next http.Handler) http.Handler {
		return middleware.AdminAuthMiddleware(next, cfg.Auth, tokenBlacklistService, adminService)
	})
	adminRouter.HandleFunc("/register", adminHandler.Register).Methods(http.MethodPost)
	adminRouter.HandleFunc("/dashboard", adminHandler.Dashboard).Methods(http.MethodGet)
	adminRouter.HandleFunc("/users", adminHandler.ListUsers).Methods(http.MethodGet)
	adminRouter.HandleFunc("/dreams", adminHandler.ListDreams).Methods(http.MethodGet)

	// 9.4 WebSocket 通知端点
	r.HandleFunc("/ws", websocket.ServeWS(hub, cfg, tokenBlacklistService)).Methods(http.MethodGet)

	// 10. 初始化并启动 Kafka 消费者（好友通知事件 -> 邮件 + WebSocket 推送）
	var emailSender email.Sender
	if cfg.SMTP.Enabled {
		emailSender = email.NewSMTPSender(cfg.SMTP)
		log.Println("SMTP 邮件通道已启用。")
	} else {
		log.Println("SMTP 邮件通道未启用，好友通知只走 WebSocket 推送。")
	}
	notificationLogic := kafkahandlers.NewFriendEventConsumerLogic(emailSender, hub, cfg.FrontendURL)

	friendEventConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建好友事件 Kafka 消费者: %v", err)
	}
	defer friendEventConsumer.Close()

	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	defer cancelConsumers()

	go func() {
		topics := []string{cfg.Kafka.FriendEventTopic}
		log.Printf("Kafka 好友事件消费者启动，监听 topic: %s, GroupID: %s", cfg.Kafka.FriendEventTopic, cfg.Kafka.ConsumerGroup)
		err := friendEventConsumer.Consume(consumerCtx, topics, cfg.Kafka.ConsumerGroup, notificationLogic.HandleFriendEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Kafka 好友事件消费者错误: %v", err)
		}
		log.Println("Kafka 好友事件消费者 goroutine 已停止。")
	}()

	// 11. 启动 HTTP 服务器并实现优雅关闭
	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)

	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	corsHandler := handlers.CORS(corsOptions...)(r)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.APIServer.ReadTimeout,
		WriteTimeout: cfg.APIServer.WriteTimeout,
		IdleTimeout:  time.Second * 60,
	}

	go func() {
		log.Printf("API 服务器启动于 %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API 服务器启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("收到关闭信号，正在关闭 API 服务器...")

	cancelConsumers()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("API 服务器强制关闭: %v", err)
	}

	log.Println("API 服务器已成功关闭")
}
