package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ederziomek/real-digital-token/internal/amount"
	"github.com/ederziomek/real-digital-token/internal/client"
	"github.com/ederziomek/real-digital-token/internal/identity"
	"github.com/ederziomek/real-digital-token/internal/reserve"
)

const usage = `usage: reservectl [flags] <command> [args]

commands:
  keygen                          create the signing key file
  init                            create the reserve with this key as authority
  account [id]                    open this key's token account, or show account id
  mint <amount> <account> <ref>   mint BRL tokens into a token account
  burn <amount> <account> <ref>   burn BRL tokens from this key's account
  deposit <recipient> <amount> <ref>
                                  record a BRL deposit and mint to recipient
  withdraw <amount> <bank-account>
                                  burn this key's tokens and request the payout
  pause | unpause                 toggle the emergency brake
  transfer-authority <address>    hand over the authority immediately
  propose-authority <address>     nominate a new authority
  accept-authority                accept a pending nomination with this key
  set-mint-limit <amount>         change the per-mint cap
  status                          show the reserve
  report                          check reserve integrity, exit 2 when unhealthy
  history                         show recent journal entries

flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var (
		flagAPI      string
		flagKey      string
		flagDecimals uint8
		flagLimit    int
		flagTimeout  time.Duration
	)

	flags := pflag.NewFlagSet("reservectl", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVarP(&flagAPI, "api", "a", envOr("RESERVE_API", "http://127.0.0.1:8080"), "reserve service base URL")
	flags.StringVarP(&flagKey, "key", "k", envOr("RESERVE_KEY", "reserve.key"), "path to the signing key file")
	flags.Uint8VarP(&flagDecimals, "decimals", "d", 2, "decimal places of the BRL token")
	flags.IntVarP(&flagLimit, "limit", "n", reserve.DefaultHistoryLimit, "number of journal entries to show")
	flags.DurationVarP(&flagTimeout, "timeout", "t", 30*time.Second, "request timeout")
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &command{
		stdout:   stdout,
		api:      flagAPI,
		keyPath:  flagKey,
		decimals: flagDecimals,
		limit:    flagLimit,
		timeout:  flagTimeout,
	}
	code, err := cmd.dispatch(ctx, flags.Arg(0), flags.Args()[1:])
	if err != nil {
		fmt.Fprintf(stderr, "reservectl: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

type command struct {
	stdout   io.Writer
	api      string
	keyPath  string
	decimals uint8
	limit    int
	timeout  time.Duration
}

var errUsage = errors.New("wrong number of arguments, see --help")

func (c *command) dispatch(ctx context.Context, name string, args []string) (int, error) {
	want := map[string]int{
		"keygen": 0, "init": 0, "pause": 0, "unpause": 0, "accept-authority": 0,
		"status": 0, "report": 0, "history": 0,
		"transfer-authority": 1, "propose-authority": 1, "set-mint-limit": 1,
		"withdraw": 2, "mint": 3, "burn": 3, "deposit": 3,
	}
	if name == "account" {
		if len(args) > 1 {
			return 1, errUsage
		}
	} else if n, ok := want[name]; !ok {
		return 1, fmt.Errorf("unknown command %q", name)
	} else if len(args) != n {
		return 1, errUsage
	}

	if name == "keygen" {
		return 0, c.keygen()
	}

	api, err := c.client(name)
	if err != nil {
		return 1, err
	}

	switch name {
	case "init":
		d := c.decimals
		return c.print(api.Initialize(ctx, &d))
	case "account":
		if len(args) == 1 {
			return c.print(api.Account(ctx, args[0]))
		}
		return c.print(api.OpenAccount(ctx))
	case "mint", "burn":
		v, err := amount.Parse(args[0], c.decimals)
		if err != nil {
			return 1, err
		}
		if name == "mint" {
			return c.print(api.Mint(ctx, v, args[1], args[2]))
		}
		return c.print(api.Burn(ctx, v, args[1], args[2]))
	case "deposit":
		if _, err := identity.ParseAddress(args[0]); err != nil {
			return 1, err
		}
		v, err := amount.Parse(args[1], c.decimals)
		if err != nil {
			return 1, err
		}
		return c.print(api.Deposit(ctx, args[0], v, args[2]))
	case "withdraw":
		v, err := amount.Parse(args[0], c.decimals)
		if err != nil {
			return 1, err
		}
		return c.print(api.Withdraw(ctx, v, args[1]))
	case "pause":
		return c.print(api.Pause(ctx))
	case "unpause":
		return c.print(api.Unpause(ctx))
	case "transfer-authority":
		return c.print(api.TransferAuthority(ctx, args[0]))
	case "propose-authority":
		return c.print(api.ProposeAuthority(ctx, args[0]))
	case "accept-authority":
		return c.print(api.AcceptAuthority(ctx))
	case "set-mint-limit":
		v, err := amount.Parse(args[0], c.decimals)
		if err != nil {
			return 1, err
		}
		return c.print(api.SetMintLimit(ctx, v))
	case "status":
		st, err := api.Status(ctx)
		if err != nil {
			return 1, err
		}
		c.summary(st.Reserve)
		return c.print(st, nil)
	case "report":
		return c.report(ctx, api)
	default:
		return c.print(api.History(ctx, c.limit))
	}
}

// client builds an API client. Read-only commands do not need a key file.
func (c *command) client(name string) (*client.Client, error) {
	opts := []client.Option{client.WithTimeout(c.timeout)}
	switch name {
	case "status", "report", "history":
		return client.New(c.api, nil, opts...), nil
	}
	kp, err := identity.Load(c.keyPath)
	if err != nil {
		return nil, fmt.Errorf("load key (run keygen first): %w", err)
	}
	return client.New(c.api, kp, opts...), nil
}

func (c *command) keygen() error {
	kp, err := identity.LoadOrCreate(c.keyPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "address: %s\nkey file: %s\n", kp.Address(), c.keyPath)
	return nil
}

func (c *command) report(ctx context.Context, api *client.Client) (int, error) {
	view, err := api.Report(ctx)
	if err != nil {
		return 1, err
	}
	if _, err := c.print(view, nil); err != nil {
		return 1, err
	}
	if !view.Healthy {
		return 2, errors.New("reserve integrity check failed")
	}
	return 0, nil
}

func (c *command) summary(r reserve.Reserve) {
	fmt.Fprintf(c.stdout, "supply: %s BRL  reserve: %s BRL  paused: %t\n",
		amount.Format(r.TotalSupply, r.Decimals), amount.Format(r.BRLReserve, r.Decimals), r.Paused)
}

func (c *command) print(v any, err error) (int, error) {
	if err != nil {
		return 1, err
	}
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return 1, err
	}
	return 0, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
