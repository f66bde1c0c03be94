package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/safatanc/gsalt-rewards/injector"
	"github.com/safatanc/gsalt-rewards/internal/infrastructures"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := infrastructures.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	infrastructures.NewLogger(cfg)

	app, err := injector.InitializeApplication(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.ExpirySweeper.Run(ctx)
	go app.Outbox.Run(ctx, cfg.Rewards.OutboxRelayInterval)

	config := fiber.Config{
		ReadTimeout:  time.Second * 60,
		WriteTimeout: time.Second * 60,
		IdleTimeout:  time.Second * 60,
	}

	router := fiber.New(config)

	router.Use(recover.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET, POST, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset",
		MaxAge:        300,
	}))

	app.RegisterRoutes(router)

	go func() {
		<-ctx.Done()
		logrus.Info("Shutting down gsalt-rewards")
		if err := router.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.Errorf("Failed to shut down http server: %v", err)
		}
	}()

	logrus.WithField("port", cfg.HTTP_PORT).Info("Starting gsalt-rewards")
	if err := router.Listen(":" + cfg.HTTP_PORT); err != nil {
		logrus.Fatal(err)
	}
}
