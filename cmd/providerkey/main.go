package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"clipforge/internal/infra"
	"clipforge/internal/infra/credentials"
)

func main() {
	var (
		userFlag   string
		keyFlag    string
		deleteFlag bool
	)
	flag.StringVar(&userFlag, "user", "", "User the key belongs to")
	flag.StringVar(&keyFlag, "key", "", "Kling API key (fallbacks to KLING_API_KEY)")
	flag.BoolVar(&deleteFlag, "delete", false, "Remove the stored key instead of setting one")
	flag.Parse()

	_ = godotenv.Load()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" && !deleteFlag {
		key = strings.TrimSpace(os.Getenv("KLING_API_KEY"))
	}
	if key == "" && !deleteFlag {
		fmt.Fprintln(os.Stderr, "Kling API key is required via -key or KLING_API_KEY")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "providerkey").Str("user", userID).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	execCtx, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()

	if deleteFlag {
		if err := store.DeleteKlingAPIKey(execCtx, userID); err != nil {
			fmt.Fprintf(os.Stderr, "failed to delete kling api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("kling api key deleted")
		return
	}

	if err := store.SetKlingAPIKey(execCtx, userID, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist kling api key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("kling api key stored")
}
