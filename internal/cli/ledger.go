package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bizzytrack/backend/internal/adapters/scheduler"
	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
	"bizzytrack/backend/internal/service"
)

var errLedgerUnbalanced = errors.New("ledger unbalanced")

func ledgerCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger maintenance",
	}
	cmd.AddCommand(openingBalancesCmd(e), verifyCmd(e))
	return cmd
}

func openingBalancesCmd(e *env) *cobra.Command {
	var userID string

	c := &cobra.Command{
		Use:   "opening-balances <business-id> [user-id]",
		Short: "Post opening balance entries for a business with existing records",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				userID = args[1]
			}
			if userID == "" {
				return errors.New("user id is required as the second argument or --user")
			}
			return e.withService(cmd, func(ctx context.Context, svc *service.Service, logger *logrus.Logger) error {
				auth := ports.AuthContext{UserID: userID, Roles: []string{domain.RoleOwner}}
				result, err := svc.MigrateOpeningBalances(ctx, auth, args[0])
				if err != nil {
					return err
				}
				logger.WithFields(logrus.Fields{
					"business_id": result.BusinessID,
					"entries":     len(result.Entries),
				}).Info("opening balances posted")
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	c.Flags().StringVarP(&userID, "user", "u", "", "user recorded as the entry author")
	return c
}

func verifyCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [business-id]",
		Short: "Check that every journal entry balances",
		Long:  "Verify one business, or every business when no id is given. Exits non-zero when any ledger is unbalanced.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withService(cmd, func(ctx context.Context, svc *service.Service, logger *logrus.Logger) error {
				reports, sweepErr := verifyLedgers(ctx, svc, logger, args)
				if reports != nil {
					if err := printJSON(cmd.OutOrStdout(), reports); err != nil {
						return err
					}
				}
				if sweepErr != nil {
					return sweepErr
				}
				for _, report := range reports {
					if !report.Balanced {
						return fmt.Errorf("business %s: %w", report.BusinessID, errLedgerUnbalanced)
					}
				}
				return nil
			})
		},
	}
}

func verifyLedgers(ctx context.Context, svc *service.Service, logger *logrus.Logger, args []string) ([]domain.LedgerVerification, error) {
	if len(args) == 1 {
		report, err := svc.VerifyLedger(ctx, scheduler.OperatorAuth, args[0])
		if err != nil {
			return nil, err
		}
		return []domain.LedgerVerification{report}, nil
	}

	// The schedule is unused; RunOnce sweeps every business immediately.
	reconciler, err := scheduler.NewReconciler("@daily", svc, logger)
	if err != nil {
		return nil, err
	}
	return reconciler.RunOnce(ctx)
}
