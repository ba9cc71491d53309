package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/overstreetbilly/snapgram/api/handlers"
	"github.com/overstreetbilly/snapgram/api/middleware"
	"github.com/overstreetbilly/snapgram/api/routes"
	"github.com/overstreetbilly/snapgram/config"
	"github.com/overstreetbilly/snapgram/db"
	"github.com/overstreetbilly/snapgram/metrics"
	"github.com/overstreetbilly/snapgram/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "etc/app.yaml", "Path to the configuration file")
	flag.Parse()

	err := config.LoadConfig(configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	log.Println("Starting server...")

	if err = db.ConnectDB(); err != nil {
		panic("Failed to connect to the database: " + err.Error())
	}
	defer db.CloseDB()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := services.NewContainer(ctx, config.AppConfig)
	if err != nil {
		panic("Failed to initialize services: " + err.Error())
	}
	defer container.Close()
	if err = container.StartBackground(ctx, config.AppConfig); err != nil {
		log.Printf("WARN: %v", err)
	}

	handlers.Init(handlers.Services{
		Accounts: container.Accounts,
		Users:    container.Users,
		Posts:    container.Posts,
		Saves:    container.Saves,
		Media:    container.Media,
		Hub:      container.Hub,
	})

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.PrometheusMiddleware(metrics.ServiceName))
	router.MaxMultipartMemory = 8 << 20

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	routes.PublicApi(router, middleware.AuthMiddleware(container.Accounts))

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.AppConfig.Backend.Host, config.AppConfig.Backend.Port),
		Handler: router,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ERROR: server failed: %v", err)
			stop()
		}
	}()
	log.Printf("Listening on %s", server.Addr)

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: shutdown failed: %v", err)
	}
}
