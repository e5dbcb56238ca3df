package service

import (
	"context"
	"errors"

	"templeseva_backend/internals/features/donations/donations/model"
	"templeseva_backend/internals/features/donations/donations/repository"
)

// Candidates are the identifiers a notification carries. Either may be empty.
type Candidates struct {
	GatewayOrderID string
	GatewayTxnID   string
}

type Matcher struct {
	repo repository.Repository
}

func NewMatcher(repo repository.Repository) *Matcher {
	return &Matcher{repo: repo}
}

// Match resolves candidates to one donation. Rules, first hit wins:
//  1. merchant order id == incoming order id
//  2. stored gateway order id == incoming order id
//  3. merchant order id == incoming txn id
//  4. stored gateway order id == incoming txn id
func (m *Matcher) Match(ctx context.Context, c Candidates) (*model.Donation, error) {
	type rule struct {
		value string
		find  func(context.Context, string) (*model.Donation, error)
	}
	rules := []rule{
		{c.GatewayOrderID, m.repo.FindByMerchantOrderID},
		{c.GatewayOrderID, m.repo.FindByGatewayOrderID},
		{c.GatewayTxnID, m.repo.FindByMerchantOrderID},
		{c.GatewayTxnID, m.repo.FindByGatewayOrderID},
	}

	for _, r := range rules {
		if r.value == "" {
			continue
		}
		d, err := r.find(ctx, r.value)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNoMatch
}
