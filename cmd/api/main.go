// @title           PDF Chat API
// @version         1.0
// @description     Upload PDF documents into a session and ask questions answered from their content.
// @termsOfService  http://swagger.io/terms/

// @contact.name    API Support
// @contact.url
// @contact.email   ank.github@gmail.com

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/PDFChat/internal/bootstrap"
	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/handlers"
	"github.com/akolanti/PDFChat/internal/middleware"
	"github.com/akolanti/PDFChat/internal/server"
	"github.com/akolanti/PDFChat/internal/worker"
	"github.com/akolanti/PDFChat/pkg/logger_i"
)

var (
	configPath        string
	listenAddr        string
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	flag.StringVar(&configPath, "config", envOr("CONFIG_FILE", "config.yaml"), "path to the yaml settings file")
	flag.StringVar(&listenAddr, "listen-addr", "", "server listen address, overrides the settings file")
	flag.Parse()

	settings, err := config.Load(configPath)
	if err != nil {
		logger_i.Init(false, "error")
		logger_i.NewLogger("main").Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if listenAddr == "" {
		listenAddr = settings.ListenAddr
	}

	logger_i.Init(settings.Production, settings.LogLevel)
	var logger = logger_i.NewLogger("main")

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	logger.Info("Starting job service")
	service, err := bootstrap.Build(serviceContext, settings)
	if err != nil {
		logger.Error("Could not build services. Shutting down.", "error", err)
		return
	}

	middleware.InitAuth(settings)
	middleware.StartLimiterPruning(serviceContext.Done(), config.LimiterPruneInterval)
	handlers.InitJobHandler(service)

	//init worker pool
	stopWorkerChannel = make(chan bool, 1)
	worker.InitServices(service)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
