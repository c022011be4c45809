// Harrier - Real-time fraud decisioning for card transactions.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/harrier/internal/domain"
)

// seed loads a demo dataset: the three starter rules, a handful of
// customers and merchants, and two analysts for case assignment.
// Idempotent; rerunning skips rows that already exist.
func seed(ctx context.Context, repo domain.Repository) error {
	if err := seedRules(ctx, repo); err != nil {
		return err
	}
	if err := seedCustomers(ctx, repo); err != nil {
		return err
	}
	if err := seedMerchants(ctx, repo); err != nil {
		return err
	}
	return seedAnalysts(ctx, repo)
}

func seedRules(ctx context.Context, repo domain.Repository) error {
	seeds := []struct {
		name       string
		expression string
		severity   domain.Severity
	}{
		{"High Amount Transaction", "amount > 2000.0", domain.SeverityHigh},
		{"Velocity Check (4x/10m)", "tx_count_10m >= 4", domain.SeverityHigh},
		{"Unusual Country", "country != usual_country", domain.SeverityMedium},
	}

	for _, s := range seeds {
		rule, err := domain.NewRule(s.name, s.expression, s.severity, "SYSTEM")
		if err != nil {
			return fmt.Errorf("invalid seed rule %q: %w", s.name, err)
		}
		if err := saveIgnoringConflict(repo.SaveRule(ctx, rule)); err != nil {
			return fmt.Errorf("failed to seed rule %q: %w", s.name, err)
		}
		slog.Info("seeded rule", "name", s.name, "severity", s.severity)
	}
	return nil
}

func seedCustomers(ctx context.Context, repo domain.Repository) error {
	customers := []*domain.Customer{
		{ID: "cust-0001", FullName: "Juan Perez", DocumentNumber: "1710001000", Segment: "standard", Age: 35, RiskProfile: "medium"},
		{ID: "cust-0002", FullName: "Maria Lopez", DocumentNumber: "1720002000", Segment: "premium", Age: 28, RiskProfile: "low"},
		{ID: "cust-0003", FullName: "Carlos Fraud", DocumentNumber: "1730003000", Segment: "risky", Age: 45, RiskProfile: "high"},
	}

	for _, c := range customers {
		if err := saveIgnoringConflict(repo.SaveCustomer(ctx, c)); err != nil {
			return fmt.Errorf("failed to seed customer %q: %w", c.FullName, err)
		}
		slog.Info("seeded customer", "name", c.FullName, "id", c.ID)
	}
	return nil
}

func seedMerchants(ctx context.Context, repo domain.Repository) error {
	merchants := []*domain.Merchant{
		{ID: "merch-0001", Name: "Amazon US", Category: "E-commerce", RiskLevel: "low", IsWhitelisted: true},
		{ID: "merch-0002", Name: "Starbucks Quito", Category: "Food", RiskLevel: "low"},
		{ID: "merch-0003", Name: "Unknown Gambling Site", Category: "Gambling", RiskLevel: "high", IsBlacklisted: true},
		{ID: "merch-0004", Name: "Tech Store", Category: "Electronics", RiskLevel: "medium"},
	}

	for _, m := range merchants {
		if err := saveIgnoringConflict(repo.SaveMerchant(ctx, m)); err != nil {
			return fmt.Errorf("failed to seed merchant %q: %w", m.Name, err)
		}
		slog.Info("seeded merchant", "name", m.Name, "id", m.ID)
	}
	return nil
}

func seedAnalysts(ctx context.Context, repo domain.Repository) error {
	analysts := []*domain.Analyst{
		{ID: "analyst-0001", Name: "Super Admin", Email: "admin@harrier.local", Role: "ADMIN"},
		{ID: "analyst-0002", Name: "Fraud Analyst", Email: "analyst@harrier.local", Role: "ANALYST"},
	}

	for _, a := range analysts {
		if err := saveIgnoringConflict(repo.SaveAnalyst(ctx, a)); err != nil {
			return fmt.Errorf("failed to seed analyst %q: %w", a.Name, err)
		}
		slog.Info("seeded analyst", "name", a.Name, "id", a.ID)
	}
	return nil
}

func saveIgnoringConflict(err error) error {
	if err == nil || errors.Is(err, domain.ErrAlreadyExists) {
		return nil
	}
	return err
}
