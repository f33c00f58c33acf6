// Package main is a command line client for the prediction market: list
// markets, show odds, place bets and claim winnings.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fd1az/oracle-resolver/business/betting"
	"github.com/fd1az/oracle-resolver/business/chain"
	"github.com/fd1az/oracle-resolver/business/marketview"
	"github.com/fd1az/oracle-resolver/internal/apperror"
	"github.com/fd1az/oracle-resolver/internal/config"
	"github.com/fd1az/oracle-resolver/internal/logger"
	"github.com/fd1az/oracle-resolver/internal/monolith"
)

const usage = `usage: marketctl [flags] <command> [args]

commands:
  list                              list all markets with odds
  show <market>                     show one market
  winnings <market> <yes|no> <amt>  potential payout for a bet
  bet <market> <yes|no> <amt>       approve and place a bet
  claim <market>                    claim winnings from a resolved market
  balance                           settlement token balance of the signer
  encrypt-key <out-file>            encrypt PRIVATE_KEY with KEY_PASSWORD

flags:
`

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	verbose := flag.Bool("verbose", false, "Log to stderr")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *verbose, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", humanize(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, verbose bool, args []string, out io.Writer) error {
	cmd, args := args[0], args[1:]

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd == "encrypt-key" {
		return encryptKey(cfg.Chain, args, out)
	}

	if cmd == "bet" || cmd == "claim" || cmd == "balance" {
		if err := cfg.ValidateSigner(); err != nil {
			return err
		}
	}

	logOut := io.Discard
	if verbose {
		logOut = os.Stderr
	}
	log := logger.New(logOut, logger.ParseLevel(cfg.App.LogLevel), "marketctl", logger.SpanTraceID)

	// Single reads should not be served stale right after a bet.
	cfg.API.CacheTTL = 0

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer mono.Close()

	modules := []monolith.Module{
		&chain.Module{},
		&marketview.Module{},
		&betting.Module{},
	}
	if err := mono.RegisterModules(modules...); err != nil {
		return err
	}

	c := newCommands(mono.Services(), out)
	switch cmd {
	case "list":
		return c.list(ctx)
	case "show":
		return c.show(ctx, args)
	case "winnings":
		return c.winnings(ctx, args)
	case "bet":
		return c.bet(ctx, args)
	case "claim":
		return c.claim(ctx, args)
	case "balance":
		return c.balance(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// humanize prefers the end-user message of coded errors.
func humanize(err error) string {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	if appErr.Context != "" {
		return fmt.Sprintf("%s (%s)", appErr.Human(), appErr.Context)
	}
	return appErr.Human()
}
