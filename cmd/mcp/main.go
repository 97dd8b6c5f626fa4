// Command mcp serves one PDF chat session over the Model Context Protocol on
// stdio. Logs go to stderr.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/PDFChat/internal/bootstrap"
	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/mcpserver"
	"github.com/akolanti/PDFChat/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to the yaml settings file")
	flag.Parse()
	if *configPath == "" {
		*configPath = "config.yaml"
	}

	settings, err := config.Load(*configPath)
	if err != nil {
		logger_i.InitStderr("error")
		logger_i.NewLogger("mcp").Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger_i.InitStderr(settings.LogLevel)
	logger := logger_i.NewLogger("mcp")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, err := bootstrap.Build(ctx, settings)
	if err != nil {
		logger.Error("Could not build services", "error", err)
		os.Exit(1)
	}

	server := mcpserver.NewServer(mcpserver.NewTools(service))
	logger.Info("MCP server running on stdio")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		logger.Error("MCP server stopped", "error", err)
		os.Exit(1)
	}
}
