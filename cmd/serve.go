package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vault-deposit/pkg/api"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the deposit HTTP API",
	Long: `Start an HTTP API that submits deposits and streams their progress.

Endpoints:
  GET    /v1/health
  GET    /v1/strategies
  GET    /v1/wallet
  POST   /v1/deposits
  GET    /v1/deposits/current
  DELETE /v1/deposits/current
  POST   /v1/deposits/current/reconcile
  GET    /v1/deposits/stream   (websocket)

Examples:
  vault-deposit serve
  vault-deposit serve --listen 127.0.0.1:9090`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) {
	a, err := newApp(cmd, true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	if listenAddr != "" {
		a.cfg.ListenAddr = listenAddr
	}

	hub := api.NewHub(a.logger.With("component", "stream"))
	orch, err := a.orchestrator(hub.Broadcast)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	server, err := api.NewServer(api.ServerOpts{
		Logger:       a.logger.With("component", "api-server"),
		Addr:         a.cfg.ListenAddr,
		Orchestrator: orch,
		Strategies:   a.strategies,
		Wallet:       a.wallet,
		Hub:          hub,
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                    VAULT DEPOSIT API")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("\n  Wallet:      %s\n", color.CyanString(a.wallet.Address().Hex()))
	fmt.Printf("  Strategies:  %d\n", len(a.strategies.List()))
	fmt.Printf("  Listening:   %s\n", a.cfg.ListenAddr)
	color.Yellow("\n• Press Ctrl+C to stop gracefully\n")
	fmt.Println(strings.Repeat("=", 70) + "\n")

	// Create context that will be canceled on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		printError(err)
		os.Exit(1)
	}

	// Stop tracking a flow still in progress
	if orch.Cancel() {
		color.Yellow("\nA deposit was still in progress. Check its transactions with 'vault-deposit status'.")
	}
	printSuccess(color.GreenString("✓ Server stopped."))
}
