package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olekukonko/tablewriter"

	bettingapp "github.com/fd1az/oracle-resolver/business/betting/app"
	bettingDI "github.com/fd1az/oracle-resolver/business/betting/di"
	marketviewapp "github.com/fd1az/oracle-resolver/business/marketview/app"
	marketviewDI "github.com/fd1az/oracle-resolver/business/marketview/di"
	"github.com/fd1az/oracle-resolver/business/marketview/domain"
	resolutiondomain "github.com/fd1az/oracle-resolver/business/resolution/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
	"github.com/fd1az/oracle-resolver/internal/config"
	"github.com/fd1az/oracle-resolver/internal/di"
	"github.com/fd1az/oracle-resolver/internal/keystore"
)

type commands struct {
	markets *marketviewapp.Service
	betting *bettingapp.Client
	out     io.Writer
}

func newCommands(sr di.ServiceRegistry, out io.Writer) *commands {
	return &commands{
		markets: marketviewDI.GetMarketService(sr),
		betting: bettingDI.GetClient(sr),
		out:     out,
	}
}

func (c *commands) list(ctx context.Context) error {
	views, err := c.markets.List(ctx)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		fmt.Fprintln(c.out, "no markets")
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Question", "State", "Yes", "No", "Yes odds", "No odds", "Ends")
	for _, v := range views {
		table.Append(
			strconv.FormatUint(v.ID, 10),
			truncate(v.Question, 48),
			v.State,
			v.TotalYes.StringFixed(2),
			v.TotalNo.StringFixed(2),
			domain.FormatOdds(v.YesOdds),
			domain.FormatOdds(v.NoOdds),
			v.EndTime.UTC().Format("2006-01-02 15:04"),
		)
	}
	table.Render()
	return nil
}

func (c *commands) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("show <market>")
	}
	id, err := parseMarketID(args[0])
	if err != nil {
		return err
	}
	v, err := c.markets.Get(ctx, id)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Field", "Value")
	table.Append("ID", strconv.FormatUint(v.ID, 10))
	table.Append("Question", v.Question)
	table.Append("Description", v.Description)
	table.Append("State", v.State)
	table.Append("Ends", v.EndTime.UTC().Format("2006-01-02 15:04:05"))
	if !v.ResolutionTime.IsZero() {
		table.Append("Resolved at", v.ResolutionTime.UTC().Format("2006-01-02 15:04:05"))
	}
	table.Append("Total YES", v.TotalYes.StringFixed(2)+" "+v.Symbol)
	table.Append("Total NO", v.TotalNo.StringFixed(2)+" "+v.Symbol)
	table.Append("Volume", v.Volume.StringFixed(2)+" "+v.Symbol)
	table.Append("Odds", fmt.Sprintf("YES %s / NO %s", domain.FormatOdds(v.YesOdds), domain.FormatOdds(v.NoOdds)))
	table.Render()
	return nil
}

func (c *commands) winnings(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usageError("winnings <market> <yes|no> <amount>")
	}
	id, outcome, err := parseBetArgs(args)
	if err != nil {
		return err
	}
	payout, err := c.markets.PotentialWinnings(ctx, id, outcome, args[2])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "betting %s %s on market %d would pay %s\n",
		args[2], outcome, id, payout.StringFixed(2))
	return nil
}

func (c *commands) bet(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usageError("bet <market> <yes|no> <amount>")
	}
	id, outcome, err := parseBetArgs(args)
	if err != nil {
		return err
	}
	receipt, err := c.betting.PlaceBet(ctx, id, outcome, args[2])
	if err != nil {
		return err
	}
	if receipt.ApproveTx != (common.Hash{}) {
		fmt.Fprintf(c.out, "approved: %s\n", receipt.ApproveTx.Hex())
	}
	fmt.Fprintf(c.out, "bet placed: %s %s on market %d (tx %s)\n",
		receipt.Amount, receipt.Outcome, receipt.MarketID, receipt.BetTx.Hex())
	return nil
}

func (c *commands) claim(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("claim <market>")
	}
	id, err := parseMarketID(args[0])
	if err != nil {
		return err
	}
	tx, err := c.betting.ClaimWinnings(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "winnings claimed on market %d (tx %s)\n", id, tx.Hex())
	return nil
}

func (c *commands) balance(ctx context.Context) error {
	bal, err := c.betting.Balance(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, bal.String())
	return nil
}

// encryptKey writes the configured private key to args[0] sealed with the
// configured key password.
func encryptKey(cfg config.ChainConfig, args []string, out io.Writer) error {
	if len(args) != 1 {
		return usageError("encrypt-key <out-file>")
	}
	if cfg.PrivateKey == "" {
		return apperror.New(apperror.CodeConfigurationMissing, apperror.WithContext("PRIVATE_KEY is not set"))
	}
	data, err := keystore.Encrypt(cfg.PrivateKey, cfg.KeyPassword)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	fmt.Fprintf(out, "encrypted key written to %s\n", args[0])
	return nil
}

func parseBetArgs(args []string) (uint64, resolutiondomain.Outcome, error) {
	id, err := parseMarketID(args[0])
	if err != nil {
		return 0, 0, err
	}
	outcome, err := resolutiondomain.ParseOutcome(args[1])
	if err != nil {
		return 0, 0, apperror.New(apperror.CodeInvalidOutcome, apperror.WithCause(err))
	}
	return id, outcome, nil
}

func parseMarketID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, apperror.Validation(apperror.CodeInvalidInput, "market id must be a non-negative integer")
	}
	return id, nil
}

func usageError(form string) error {
	return apperror.Validation(apperror.CodeInvalidInput, "usage: marketctl "+form)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
