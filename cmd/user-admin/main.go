package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"gorm.io/gorm"

	"github.com/gantim/nvcloud-api-and-bot/pkg/config"
	"github.com/gantim/nvcloud-api-and-bot/pkg/database"
	"github.com/gantim/nvcloud-api-and-bot/pkg/database/models"
	"github.com/gantim/nvcloud-api-and-bot/pkg/database/repositories"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: user-admin <command> [args...]")
		fmt.Println("Commands:")
		fmt.Println("  create-user <username> <email> <password> [full_name]")
		fmt.Println("  list-users")
		fmt.Println("  grant-admin <username>")
		fmt.Println("  revoke-admin <username>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Failed to close database connection: %v", err)
		}
	}()

	if err := db.AutoMigrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	userRepo := repositories.NewUserRepository(db.DB)
	ctx := context.Background()

	command := os.Args[1]
	switch command {
	case "create-user":
		if len(os.Args) < 5 {
			fmt.Println("Usage: user-admin create-user <username> <email> <password> [full_name]")
			os.Exit(1)
		}

		user := &models.User{
			Username: os.Args[2],
			Email:    os.Args[3],
		}
		if len(os.Args) > 5 {
			user.FullName = os.Args[5]
		}

		if _, err := userRepo.GetByUsername(ctx, user.Username); err == nil {
			log.Fatalf("Username %q is already taken", user.Username)
		}
		if _, err := userRepo.GetByEmail(ctx, user.Email); err == nil {
			log.Fatalf("Email %q is already registered", user.Email)
		}

		if err := user.SetPassword(os.Args[4]); err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		if err := userRepo.Create(ctx, user); err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}

		fmt.Printf("User created successfully!\n")
		fmt.Printf("ID: %s\n", user.ID)
		fmt.Printf("Username: %s\n", user.Username)
		fmt.Printf("Email: %s\n", user.Email)

	case "list-users":
		users, err := userRepo.List(ctx, 100, 0)
		if err != nil {
			log.Fatalf("Failed to list users: %v", err)
		}

		fmt.Printf("Found %d users:\n", len(users))
		for _, user := range users {
			role := "user"
			if user.IsAdmin {
				role = "admin"
			}
			fmt.Printf("- %s (%s) - %s [%s]\n", user.Username, user.Email, user.FullName, role)
		}

	case "grant-admin", "revoke-admin":
		if len(os.Args) < 3 {
			fmt.Printf("Usage: user-admin %s <username>\n", command)
			os.Exit(1)
		}

		user, err := userRepo.GetByUsername(ctx, os.Args[2])
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Fatalf("User %q not found", os.Args[2])
			}
			log.Fatalf("Failed to load user: %v", err)
		}

		user.IsAdmin = command == "grant-admin"
		if err := userRepo.Update(ctx, user); err != nil {
			log.Fatalf("Failed to update user: %v", err)
		}

		fmt.Printf("User %s is_admin=%v\n", user.Username, user.IsAdmin)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}
