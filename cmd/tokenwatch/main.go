package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "tokenwatch"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Solana memecoin launch scanner and portfolio tracker",
		Version: version,
		Long: `tokenwatch watches the pump.fun launch and trade feeds, scores new
tokens by deployer reputation, liquidity and community signals, and
serves recommendations, strategy advice, price alerts and portfolio
analytics over HTTP.`,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scanner and the HTTP API",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "config.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}
