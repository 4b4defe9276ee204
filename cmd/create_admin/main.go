package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"gorm.io/gorm"

	"grantdesk/internal/config"
	"grantdesk/internal/database"
	"grantdesk/internal/domain"
	"grantdesk/internal/util"
)

func main() {
	username := flag.String("username", "admin", "admin username")
	email := flag.String("email", "admin@grantdesk.io", "admin email")
	fullName := flag.String("name", "System Administrator", "display name")
	flag.Parse()

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("ADMIN_PASSWORD must be set")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// The database may still be starting when this runs next to it in compose.
	ctx := context.Background()
	err = util.Retry(ctx, cfg.Retry, func(ctx context.Context) error {
		return database.Init()
	})
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	db := database.GetDB()

	var existingUser domain.User
	err = db.Where("username = ?", *username).First(&existingUser).Error
	if err == nil {
		fmt.Printf("User %q already exists\n", *username)
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalf("Failed to look up user: %v", err)
	}

	hashedPassword, err := util.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	adminUser := domain.User{
		Username:       *username,
		Email:          domain.NormalizeEmail(*email),
		HashedPassword: hashedPassword,
		FullName:       fullName,
		IsActive:       true,
		IsAdmin:        true,
		IsStaff:        true,
	}

	if err := db.Create(&adminUser).Error; err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}

	fmt.Println("Admin user created successfully!")
	fmt.Printf("Username: %s\n", adminUser.Username)
	fmt.Printf("UID: %s\n", adminUser.UID)
}
