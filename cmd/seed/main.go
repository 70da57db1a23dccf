package main

import (
	"context"
	"errors"
	"log"
	"time"

	"finsight-be/internal/config"
	"finsight-be/internal/dto"
	"finsight-be/internal/pkg/apperror"
	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/pkg/token"
	"finsight-be/internal/repository/unitofwork"
	"finsight-be/internal/service"
	"finsight-be/pkg/conversation"
	"finsight-be/pkg/database"
	"finsight-be/pkg/llm/stub"

	"github.com/fatih/color"
	"github.com/google/uuid"
	gormlogger "gorm.io/gorm/logger"
)

const (
	demoEmail    = "demo@finsight.local"
	demoPassword = "finsight-demo"
)

var demoChats = []struct {
	title    string
	messages []conversation.Message
}{
	{
		title: "AAPL earnings recap",
		messages: []conversation.Message{
			{Sender: conversation.SenderUser, Content: "How did Apple do last quarter?"},
			{Sender: conversation.SenderAI, Content: "Revenue grew year over year, led by services. Margins held steady."},
		},
	},
	{
		title: "Rate cut scenarios",
		messages: []conversation.Message{
			{Sender: conversation.SenderUser, Content: "What happens to bond yields if the Fed cuts twice?"},
		},
	},
}

// quietMailer prints instead of sending so seeding never needs SMTP.
type quietMailer struct{}

func (quietMailer) SendWelcome(toEmail, name string) error {
	color.Cyan("  (mail) welcome to %s <%s>", name, toEmail)
	return nil
}

func (quietMailer) SendResetLink(toEmail, _ string) error {
	color.Cyan("  (mail) reset link to %s", toEmail)
	return nil
}

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, database.WithLogLevel(gormlogger.Silent))
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	ctx := context.Background()
	nop := logger.NewNopLogger()
	uowFactory := unitofwork.NewRepositoryFactory(db)
	tokens := token.NewManager(cfg.Auth.JwtSecret, cfg.Auth.AccessTokenTTL)
	authService := service.NewAuthService(uowFactory, quietMailer{}, nil, tokens, cfg.Auth.RefreshTokenTTL, nop)
	provisioning := service.NewProvisioningService(uowFactory, cfg.Billing.FreeCreditsLimit, nop)
	chats := service.NewChatService(uowFactory, stub.NewProvider(), nil, nop)

	color.Yellow("\n[1] Demo account")
	session, err := authService.Register(ctx, &dto.RegisterRequest{
		FirstName: "Demo",
		LastName:  "Investor",
		Email:     demoEmail,
		Password:  demoPassword,
	}, "127.0.0.1", "seed")
	switch {
	case errors.Is(err, apperror.ErrEmailTaken):
		session, err = authService.Login(ctx, &dto.LoginRequest{Email: demoEmail, Password: demoPassword}, "127.0.0.1", "seed")
		if err != nil {
			color.Red("Demo account exists but cannot sign in: %v", err)
			return
		}
		color.Green("Exists: %s", demoEmail)
	case err != nil:
		color.Red("Failed: %v", err)
		return
	default:
		color.Green("Created: %s / %s", demoEmail, demoPassword)
	}
	userId := session.User.Id

	color.Yellow("\n[2] Plan defaults")
	defaults, err := provisioning.EnsureDefaults(ctx, userId)
	if err != nil {
		color.Red("Failed: %v", err)
		return
	}
	color.Green("Plan %s, %d credits (created: %t)", defaults.Plan, defaults.CreditsLimit, defaults.Created)

	color.Yellow("\n[3] Conversations")
	existing, err := chats.ListConversations(ctx, userId)
	if err != nil {
		color.Red("Failed: %v", err)
		return
	}
	if len(existing) > 0 {
		color.Green("Skipped: %d conversations already present", len(existing))
		return
	}

	for _, seed := range demoChats {
		chat, err := chats.InsertConversation(ctx, userId, seed.title)
		if err != nil {
			color.Red("Failed to create %q: %v", seed.title, err)
			continue
		}
		at := time.Now().Add(-time.Hour)
		for _, msg := range seed.messages {
			msg.Id = uuid.Must(uuid.NewV7())
			msg.ChatId = chat.Id
			msg.CreatedAt = at
			at = at.Add(time.Minute)
			if err := chats.InsertMessage(ctx, userId, msg); err != nil {
				color.Red("Failed to add message to %q: %v", seed.title, err)
			}
		}
		color.Green("Created: %s (%d messages)", seed.title, len(seed.messages))
	}

	color.Cyan("\nSeeding completed.")
}
