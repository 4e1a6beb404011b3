package engine

import (
	"context"
	"fmt"
	"time"

	"taskflow/internal/config"
	"taskflow/internal/domain"
	"taskflow/internal/events"
)

// PurchaseOptions are parameters for activating a paid feature.
type PurchaseOptions struct {
	UserID       string
	FeatureType  string
	TxHash       string
	DurationDays int
}

// PurchaseFeature records a completed feature purchase and activates the
// grant. premium_bundle expands to both underlying features in a single
// transaction sharing one expiry, so a partial grant can never be
// observed. The transaction hash is recorded as-is; settlement is trusted
// upstream.
func (e Engine) PurchaseFeature(ctx context.Context, opts PurchaseOptions) ([]domain.Subscription, error) {
	plan, err := e.featurePlan(opts.FeatureType)
	if err != nil {
		return nil, err
	}
	days := opts.DurationDays
	if days <= 0 {
		days = plan.DurationDays
	}
	now := e.now().UTC()
	createdAt := now.Format(time.RFC3339)
	expiresAt := now.AddDate(0, 0, days).Format(time.RFC3339)

	if _, err := e.Repo.GetUserByID(ctx, opts.UserID); err != nil {
		return nil, err
	}

	grants := []string{opts.FeatureType}
	if opts.FeatureType == domain.FeaturePremiumBundle {
		grants = []string{domain.FeatureNotifications, domain.FeatureProjectLinking}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var res []domain.Subscription
	for _, feature := range grants {
		s := domain.Subscription{
			UserID:      opts.UserID,
			FeatureType: feature,
			IsActive:    true,
			ExpiresAt:   &expiresAt,
			CreatedAt:   createdAt,
		}
		if err := e.Repo.InsertSubscription(ctx, tx, s); err != nil {
			return nil, fmt.Errorf("insert subscription: %w", err)
		}
		res = append(res, s)
	}
	if err := e.Events.Append(ctx, tx, "subscription.activated", opts.UserID, "subscription", opts.FeatureType, events.EventPayload{
		"tx_hash":    opts.TxHash,
		"price_eth":  plan.PriceETH,
		"expires_at": expiresAt,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

// DeactivateFeature cancels a grant before its expiry. Deactivating the
// bundle cancels both underlying features.
func (e Engine) DeactivateFeature(ctx context.Context, userID, featureType string) error {
	if _, err := e.featurePlan(featureType); err != nil {
		return err
	}
	features := []string{featureType}
	if featureType == domain.FeaturePremiumBundle {
		features = []string{domain.FeatureNotifications, domain.FeatureProjectLinking}
	}
	for _, feature := range features {
		if err := e.Repo.DeactivateSubscription(ctx, userID, feature); err != nil {
			return err
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "subscription.deactivated", userID, "subscription", featureType, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ActiveFeatures returns the user's live grants. Reading sweeps expired
// rows so lapsed grants are deactivated before listing.
func (e Engine) ActiveFeatures(ctx context.Context, userID string) ([]domain.Subscription, error) {
	for feature := range e.Config.Features.Catalog {
		if feature == domain.FeaturePremiumBundle {
			continue
		}
		if _, err := e.Repo.HasActiveSubscription(ctx, userID, feature, e.now().UTC()); err != nil {
			return nil, err
		}
	}
	return e.Repo.ListActiveSubscriptions(ctx, userID)
}

// HasFeature reports whether a user currently holds a feature grant.
func (e Engine) HasFeature(ctx context.Context, userID, featureType string) (bool, error) {
	return e.Repo.HasActiveSubscription(ctx, userID, featureType, e.now().UTC())
}

func (e Engine) featurePlan(featureType string) (config.FeaturePlan, error) {
	if e.Config == nil {
		return config.FeaturePlan{}, fmt.Errorf("config not loaded")
	}
	plan, ok := e.Config.Features.Catalog[featureType]
	if !ok {
		return config.FeaturePlan{}, fmt.Errorf("unknown feature type %q", featureType)
	}
	return plan, nil
}
