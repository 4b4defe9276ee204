package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"grantdesk/internal/admintools"
	"grantdesk/internal/chat"
	"grantdesk/internal/config"
	"grantdesk/internal/database"
	"grantdesk/internal/docstore"
	"grantdesk/internal/services"
	"grantdesk/internal/util"
)

func main() {
	adminID := flag.String("admin-id", os.Getenv("MCP_ADMIN_ID"), "user id recorded on replies")
	flag.Parse()

	// stdout carries the protocol
	log.SetOutput(os.Stderr)

	if err := run(*adminID); err != nil {
		log.Printf("[MCP] %v", err)
		os.Exit(1)
	}
}

// run serves the admin tools over stdio until the client disconnects.
// Deferred cleanup has finished by the time it returns.
func run(adminID string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := context.Background()
	err = util.Retry(ctx, cfg.Retry, func(ctx context.Context) error {
		return database.Init()
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	emailSvc := services.NewEmailService(&cfg.Email)
	chatSvc := chat.NewService(docstore.NewGormStore(database.GetDB()),
		chat.WithObserver(services.NewResponseNotifier(emailSvc, &cfg.Email)),
		chat.WithVerifyInquiry(cfg.Chat.VerifyInquiry),
		chat.WithTransactionalSends(cfg.Chat.TransactionalSends),
	)
	defer chatSvc.Wait()

	s := server.NewMCPServer(
		"grantdesk-admin",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	admintools.New(chatSvc, cfg.Retry, adminID).Register(s)

	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
