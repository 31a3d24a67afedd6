package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/xraph/abacus"
	"github.com/xraph/abacus/account"
	"github.com/xraph/abacus/arith"
	"github.com/xraph/abacus/randstr"
	"github.com/xraph/abacus/store/memory"
)

type rootOptions struct {
	configPath string
	verbose    bool
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "abacus",
		Short:         "Run priced arithmetic operations against a balance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log engine events to stderr")

	root.AddCommand(
		newOperationsCmd(opts),
		newExecCmd(opts),
		newBalanceCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

// =============================================================================
// operations
// =============================================================================

func newOperationsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List the operation catalog with costs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, _, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Stop() //nolint:errcheck // memory store close never fails

			ops, err := eng.Operations(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(opts.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "OPERATION\tCOST\tOPERANDS")
			for _, op := range ops {
				fmt.Fprintf(w, "%s\t%d\t%d\n", op.Kind, op.Cost, op.Arity)
			}
			return w.Flush()
		},
	}
}

// =============================================================================
// exec
// =============================================================================

func newExecCmd(opts *rootOptions) *cobra.Command {
	var (
		token     string
		accountID string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "exec OPERATION [OPERAND1] [OPERAND2]",
		Short: "Execute one operation and print the record",
		Example: `  abacus exec addition 10.5 20.3 --account 3f1c...
  abacus exec square_root 2 --token "$TOKEN"
  abacus exec random_string 3 --account 3f1c... --json`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, cfg, err := opts.engine(ctx)
			if err != nil {
				return err
			}
			defer eng.Stop() //nolint:errcheck // memory store close never fails

			credential, err := credentialFor(cfg, token, accountID)
			if err != nil {
				return err
			}

			operands := append(args[1:], "", "")
			rec, err := eng.ExecuteStrings(ctx, credential, args[0], operands[0], operands[1])
			if err != nil {
				return fmt.Errorf("%w (status %d)", err, abacus.StatusCode(err))
			}

			if asJSON {
				enc := json.NewEncoder(opts.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			fmt.Fprintf(opts.stdout, "result:         %s\n", rec.Result)
			fmt.Fprintf(opts.stdout, "cost:           %d\n", rec.Cost)
			fmt.Fprintf(opts.stdout, "balance after:  %d\n", rec.BalanceAfter)
			fmt.Fprintf(opts.stdout, "record:         %s\n", rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "bearer token identifying the caller")
	cmd.Flags().StringVar(&accountID, "account", "", "account id; a token is minted with the configured secret")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the record as JSON")
	return cmd
}

// =============================================================================
// balance
// =============================================================================

func newBalanceCmd(opts *rootOptions) *cobra.Command {
	var token, accountID string

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Print the caller's balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			eng, cfg, err := opts.engine(ctx)
			if err != nil {
				return err
			}
			defer eng.Stop() //nolint:errcheck // memory store close never fails

			credential, err := credentialFor(cfg, token, accountID)
			if err != nil {
				return err
			}
			a, err := eng.Balance(ctx, credential)
			if err != nil {
				return err
			}
			fmt.Fprintf(opts.stdout, "%s\t%d\n", a.ID, a.Balance)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "bearer token identifying the caller")
	cmd.Flags().StringVar(&accountID, "account", "", "account id; a token is minted with the configured secret")
	return cmd
}

// =============================================================================
// token
// =============================================================================

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		accountID string
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 token for an account",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath, os.LookupEnv)
			if err != nil {
				return err
			}
			signed, err := mintToken(cfg, accountID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(opts.stdout, signed)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "account id to use as the subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("account") //nolint:errcheck // flag is defined above
	return cmd
}

// =============================================================================
// helpers
// =============================================================================

// engine loads the config, opens the configured accounts in a memory store
// and starts an engine over it.
func (o *rootOptions) engine(ctx context.Context) (*abacus.Engine, *cliConfig, error) {
	cfg, err := loadConfig(o.configPath, os.LookupEnv)
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(o.stderr, &slog.HandlerOptions{Level: level}))

	mode, err := arith.ParseMode(cfg.Mode)
	if err != nil {
		return nil, nil, err
	}
	verifier, err := cfg.Auth.Verifier()
	if err != nil {
		return nil, nil, err
	}
	client, err := randstr.New(cfg.RandomStrings, randstr.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	s := memory.New()
	for _, a := range cfg.Accounts {
		acct := &account.Account{ID: uuid.MustParse(a.ID), Balance: a.Balance}
		if err := s.CreateAccount(ctx, acct); err != nil {
			return nil, nil, fmt.Errorf("open account %s: %w", a.ID, err)
		}
	}

	eng := abacus.New(s,
		abacus.WithLogger(logger),
		abacus.WithVerifier(verifier),
		abacus.WithGenerator(client),
		abacus.WithMode(mode),
		abacus.WithCosts(cfg.Costs),
		abacus.WithRefundOnFailure(!cfg.DisableRefund),
	)
	if err := eng.Start(ctx); err != nil {
		return nil, nil, err
	}
	return eng, cfg, nil
}

func credentialFor(cfg *cliConfig, token, accountID string) (string, error) {
	switch {
	case token != "":
		return token, nil
	case accountID != "":
		return mintToken(cfg, accountID, time.Minute)
	default:
		return "", errors.New("one of --token or --account is required")
	}
}

func mintToken(cfg *cliConfig, accountID string, ttl time.Duration) (string, error) {
	subject, err := uuid.Parse(accountID)
	if err != nil {
		return "", fmt.Errorf("account %q is not a uuid", accountID)
	}
	secret, err := cfg.secret()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject.String(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if cfg.Auth.Issuer != "" {
		claims["iss"] = cfg.Auth.Issuer
	}
	if cfg.Auth.Audience != "" {
		claims["aud"] = cfg.Auth.Audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
