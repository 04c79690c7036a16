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

	"clipforge/internal/adapter/repo"
	"clipforge/internal/infra"
)

func main() {
	var (
		userFlag   string
		tokensFlag int64
	)
	flag.StringVar(&userFlag, "user", "", "User receiving the tokens")
	flag.Int64Var(&tokensFlag, "tokens", 0, "Token amount to grant")
	flag.Parse()

	_ = godotenv.Load()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(1)
	}
	if tokensFlag <= 0 {
		fmt.Fprintln(os.Stderr, "-tokens must be positive")
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

	logger := infra.NewLogger("cli").With().Str("cmd", "grantcredits").Str("user", userID).Logger()
	ledger := repo.NewLedger(infra.NewSQLRunner(pool, logger))

	execCtx, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()

	balance, err := ledger.Grant(execCtx, userID, tokensFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to grant tokens: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("granted %d tokens, new balance %d\n", tokensFlag, balance)
}
