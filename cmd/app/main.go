package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"order_go/internal/app"

	"github.com/spf13/cobra"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "order_go",
		Short:        "Order placement and settlement service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newPortfolioCmd(&configPath))
	root.AddCommand(newOrdersCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	var pprofAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Graceful Shutdown Context
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bootstrap := app.NewBootstrap()
			if err := bootstrap.Initialize(ctx, *configPath); err != nil {
				slog.Error("Bootstrapping failed", slog.Any("error", err))
				return err
			}
			defer bootstrap.Close(context.Background())

			if pprofAddr != "" {
				go func() {
					slog.Info("Pprof server started", slog.String("addr", pprofAddr))
					if err := http.ListenAndServe(pprofAddr, nil); err != nil {
						slog.Error("Pprof server failed", slog.Any("error", err))
					}
				}()
			}

			slog.InfoContext(ctx, "Order service operational. Press Ctrl+C to exit.")
			return bootstrap.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "pprof listen address, e.g. localhost:6060")
	return cmd
}

func newPortfolioCmd(configPath *string) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Print the valued portfolio of an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootstrap, err := initialize(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer bootstrap.Close(context.Background())

			snap, err := bootstrap.Orders.GetPortfolio(cmd.Context(), account)
			if err != nil {
				return err
			}
			return printJSON(cmd, snap)
		},
	}
	cmd.Flags().StringVarP(&account, "account", "a", "", "account id")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newOrdersCmd(configPath *string) *cobra.Command {
	var (
		account  string
		status   string
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List the orders of an account, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootstrap, err := initialize(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer bootstrap.Close(context.Background())

			items, total, err := bootstrap.Orders.ListOrders(cmd.Context(), account, status, page, pageSize)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"items": items, "total": total})
		},
	}
	cmd.Flags().StringVarP(&account, "account", "a", "", "account id")
	cmd.Flags().StringVar(&status, "status", "", "PENDING, FILLED, REJECTED or CANCELLED")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "page size (max 100)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func initialize(ctx context.Context, configPath string) (*app.Bootstrap, error) {
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx, configPath); err != nil {
		bootstrap.Close(context.Background())
		return nil, fmt.Errorf("bootstrapping failed: %w", err)
	}
	return bootstrap, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
