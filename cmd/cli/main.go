package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/infrastructure/auth"
	"github.com/iho/coinledger/internal/infrastructure/config"
	"github.com/iho/coinledger/internal/infrastructure/logger"
	"github.com/iho/coinledger/internal/infrastructure/postgres"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// apiClient calls the coinledger HTTP API.
type apiClient struct {
	baseURL string
	token   string
	timeout time.Duration
	out     io.Writer
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL, "/")+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s failed (status %d): %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		_, err = c.out.Write(data)
		return err
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(c.out)
	return err
}

func newRootCmd(out io.Writer) *cobra.Command {
	client := &apiClient{out: out}

	rootCmd := &cobra.Command{
		Use:           "coinledger-cli",
		Short:         "CoinLedger CLI tool",
		Long:          `A command line interface for operating the CoinLedger coin ledger and lottery.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&client.baseURL, "url", "http://localhost:8080", "Base URL of the CoinLedger API")
	rootCmd.PersistentFlags().StringVar(&client.token, "token", os.Getenv("COINLEDGER_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().DurationVar(&client.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		newBalanceCmd(client),
		newRoundsCmd(client),
		newLedgerCmd(client),
		newMigrateCmd(),
		newTokenCmd(out),
	)

	return rootCmd
}

func newBalanceCmd(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user>",
		Short: "Show a user's coin balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.do(cmd.Context(), http.MethodGet, "/api/v1/users/"+url.PathEscape(args[0])+"/balance", nil)
		},
	}
}

func newRoundsCmd(client *apiClient) *cobra.Command {
	roundsCmd := &cobra.Command{
		Use:   "rounds",
		Short: "Lottery round operations",
	}

	var status string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List rounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/rounds/"
			if status != "" {
				path += "?status=" + url.QueryEscape(status)
			}
			return client.do(cmd.Context(), http.MethodGet, path, nil)
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status (open, closed_pending_draw, settled)")

	var (
		name     string
		category string
		cost     int64
		prize    int64
		duration time.Duration
	)
	openCmd := &cobra.Command{
		Use:   "open",
		Short: "Open a new round",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if duration <= 0 {
				return fmt.Errorf("--duration must be positive")
			}
			return client.do(cmd.Context(), http.MethodPost, "/api/v1/rounds/", map[string]any{
				"name":           name,
				"category":       category,
				"cost_per_entry": cost,
				"prize_coins":    prize,
				"closes_at":      time.Now().UTC().Add(duration),
			})
		},
	}
	openCmd.Flags().StringVar(&name, "name", "", "Round name")
	openCmd.Flags().StringVar(&category, "category", "", "Round category")
	openCmd.Flags().Int64Var(&cost, "cost", 1, "Coins per entry")
	openCmd.Flags().Int64Var(&prize, "prize", 0, "Prize in coins")
	openCmd.Flags().DurationVar(&duration, "duration", 24*time.Hour, "Time until the round closes")
	openCmd.MarkFlagRequired("name")

	closeCmd := &cobra.Command{
		Use:   "close-expired",
		Short: "Close every open round past its close time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.do(cmd.Context(), http.MethodPost, "/api/v1/rounds/close-expired", map[string]any{})
		},
	}

	drawCmd := &cobra.Command{
		Use:   "draw <round>",
		Short: "Draw the winner of a closed round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.do(cmd.Context(), http.MethodPost, "/api/v1/rounds/"+url.PathEscape(args[0])+"/draw", nil)
		},
	}

	entriesCmd := &cobra.Command{
		Use:   "entries <round>",
		Short: "List a round's entries per user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.do(cmd.Context(), http.MethodGet, "/api/v1/rounds/"+url.PathEscape(args[0])+"/entries", nil)
		},
	}

	roundsCmd.AddCommand(listCmd, openCmd, closeCmd, drawCmd, entriesCmd)
	return roundsCmd
}

func newLedgerCmd(client *apiClient) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check every wallet against the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.do(cmd.Context(), http.MethodGet, "/api/v1/ledger/reconciliation", nil)
		},
	}

	ledgerCmd.AddCommand(reconcileCmd)
	return ledgerCmd
}

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations directly (uses DATABASE_URL)",
	}

	run := func(apply func(databaseURL, migrationsPath string, logger zerolog.Logger) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console"})
			return apply(cfg.DatabaseURL, cfg.MigrationsPath, log)
		}
	}

	migrateCmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", Args: cobra.NoArgs, RunE: run(postgres.RunMigrations)},
		&cobra.Command{Use: "down", Short: "Roll back all migrations", Args: cobra.NoArgs, RunE: run(postgres.RunMigrationsDown)},
	)
	return migrateCmd
}

func newTokenCmd(out io.Writer) *cobra.Command {
	var (
		userID   string
		role     string
		validFor time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			token, err := auth.NewJWTManager(secret, validFor).Issue(&domain.User{ID: userID, Role: domain.Role(role)})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (token subject)")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleOperator), "Role: admin, operator, service or player")
	cmd.Flags().DurationVar(&validFor, "valid-for", time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("user")
	return cmd
}
