// Package scheduler runs the periodic ledger reconciliation.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

// LedgerVerifier is the slice of the service the reconciler drives.
type LedgerVerifier interface {
	ListBusinesses(ctx context.Context, auth ports.AuthContext) ([]domain.Business, error)
	VerifyLedger(ctx context.Context, auth ports.AuthContext, businessID string) (domain.LedgerVerification, error)
}

// OperatorAuth is the identity scheduled jobs act under.
var OperatorAuth = ports.AuthContext{UserID: "reconciler", Roles: []string{domain.RoleOwner}}

const defaultRunTimeout = 5 * time.Minute

type Reconciler struct {
	cron     *cron.Cron
	verifier LedgerVerifier
	logger   *logrus.Logger
	timeout  time.Duration
}

// NewReconciler schedules a verification pass over every business on the
// standard five-field cron expression.
func NewReconciler(schedule string, verifier LedgerVerifier, logger *logrus.Logger) (*Reconciler, error) {
	if verifier == nil {
		return nil, errors.New("new reconciler: verifier is nil")
	}
	if logger == nil {
		return nil, errors.New("new reconciler: logger is nil")
	}
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return nil, errors.New("new reconciler: schedule is empty")
	}

	r := &Reconciler{
		cron:     cron.New(cron.WithLogger(cron.VerbosePrintfLogger(logger))),
		verifier: verifier,
		logger:   logger,
		timeout:  defaultRunTimeout,
	}
	if _, err := r.cron.AddFunc(schedule, r.tick); err != nil {
		return nil, fmt.Errorf("new reconciler: parse schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *Reconciler) Start() {
	r.cron.Start()
	r.logger.WithField("jobs", len(r.cron.Entries())).Info("ledger reconciliation scheduled")
}

// Stop halts the schedule and waits for a running pass or ctx, whichever
// ends first.
func (r *Reconciler) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
		r.logger.Warn("ledger reconciliation still running at shutdown")
	}
}

func (r *Reconciler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.WithError(err).Error("ledger reconciliation failed")
	}
}

// RunOnce verifies every business and returns the reports it could build.
// A failing business does not stop the sweep; its error is joined into the
// returned error.
func (r *Reconciler) RunOnce(ctx context.Context) ([]domain.LedgerVerification, error) {
	businesses, err := r.verifier.ListBusinesses(ctx, OperatorAuth)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}

	reports := make([]domain.LedgerVerification, 0, len(businesses))
	var failures []error
	drifted := 0
	for _, business := range businesses {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		entry := r.logger.WithField("business_id", business.ID)

		report, err := r.verifier.VerifyLedger(ctx, OperatorAuth, business.ID)
		if err != nil {
			entry.WithError(err).Error("verify ledger")
			failures = append(failures, fmt.Errorf("business %s: %w", business.ID, err))
			continue
		}
		reports = append(reports, report)
		if report.Balanced {
			continue
		}
		drifted++
		entry.WithFields(logrus.Fields{
			"total_debit_cents":    report.TotalDebitCents,
			"total_credit_cents":   report.TotalCreditCents,
			"unbalanced_entry_ids": strings.Join(report.UnbalancedEntryIDs, ","),
		}).Warn("ledger drift detected")
	}

	r.logger.WithFields(logrus.Fields{
		"businesses": len(businesses),
		"drifted":    drifted,
		"failed":     len(failures),
	}).Info("ledger reconciliation finished")
	if len(failures) > 0 {
		return reports, fmt.Errorf("verify %d of %d ledgers: %w", len(failures), len(businesses), errors.Join(failures...))
	}
	return reports, nil
}
