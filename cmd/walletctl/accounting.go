package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/wallet-engine/internal/catalog"
	"github.com/jmylchreest/wallet-engine/internal/config"
	"github.com/jmylchreest/wallet-engine/internal/models"
	"github.com/jmylchreest/wallet-engine/internal/repository"
	"github.com/jmylchreest/wallet-engine/internal/service"
)

// ownerFlags selects a wallet owner with --user or --project.
type ownerFlags struct {
	user    string
	project string
}

func (o *ownerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.user, "user", "", "Owner username")
	cmd.Flags().StringVar(&o.project, "project", "", "Owner project id")
	cmd.MarkFlagsMutuallyExclusive("user", "project")
	cmd.MarkFlagsOneRequired("user", "project")
}

func (o *ownerFlags) owner() models.WalletOwner {
	if o.project != "" {
		return models.ProjectOwner(o.project)
	}
	return models.UserOwner(o.user)
}

// parseDate accepts RFC 3339 or YYYY-MM-DD and returns epoch milliseconds.
func parseDate(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			ms := t.UnixMilli()
			return &ms, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q: want RFC 3339 or YYYY-MM-DD", s)
}

func newRootDepositCmd() *cobra.Command {
	var (
		owner         ownerFlags
		category      models.ProductCategoryID
		amount        int64
		start, end    string
		description   string
		transactionID string
	)
	cmd := &cobra.Command{
		Use:   "root-deposit",
		Short: "Fund a new root allocation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := parseDate(start)
			if err != nil {
				return err
			}
			endDate, err := parseDate(end)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := cliLogger(cmd)
			db, err := openDatabase(cfg, logger)
			if err != nil {
				return err
			}
			defer closeQuietly(db)
			cat, err := catalog.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			accounts := service.NewAccountingService(repository.NewStore(db), cat, cfg.Accounting, logger)
			items := []service.RootDepositItem{{
				CategoryID:    category,
				Recipient:     owner.owner(),
				Amount:        amount,
				Description:   description,
				StartDate:     startDate,
				EndDate:       endDate,
				TransactionID: transactionID,
			}}
			if err := accounts.RootDeposit(cmd.Context(), "", items); err != nil {
				return err
			}
			return printValue(cmd, map[string]string{"transactionId": items[0].TransactionID})
		},
	}
	owner.register(cmd)
	cmd.Flags().StringVar(&category.Name, "category", "", "Product category name")
	cmd.Flags().StringVar(&category.Provider, "provider", "", "Product category provider")
	cmd.Flags().Int64Var(&amount, "amount", 0, "Initial balance")
	cmd.Flags().StringVar(&start, "start", "", "Start date (default now)")
	cmd.Flags().StringVar(&end, "end", "", "End date (default never)")
	cmd.Flags().StringVar(&description, "description", "", "Description recorded on the transaction")
	cmd.Flags().StringVar(&transactionID, "transaction-id", "", "Idempotency key (generated when omitted)")
	for _, f := range []string{"category", "provider", "amount"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newWalletsCmd() *cobra.Command {
	var owner ownerFlags
	cmd := &cobra.Command{
		Use:   "wallets",
		Short: "Show every wallet and allocation of an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := cliLogger(cmd)
			db, err := openDatabase(cfg, logger)
			if err != nil {
				return err
			}
			defer closeQuietly(db)

			wallets, err := service.NewWalletService(repository.NewStore(db), cfg.Accounting, logger).
				RetrieveWalletsInternal(cmd.Context(), owner.owner())
			if err != nil {
				return err
			}
			return printValue(cmd, wallets)
		},
	}
	owner.register(cmd)
	return cmd
}
