package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vispark/vispark-api/internal/db"
	"github.com/vispark/vispark-api/internal/db/models"
)

// HubSubscriptionRepository defines operations for managing PubSubHubbub leases.
type HubSubscriptionRepository interface {
	// Create creates a new subscription.
	Create(ctx context.Context, sub *models.HubSubscription) error

	// GetByID retrieves a subscription by ID.
	GetByID(ctx context.Context, id int64) (*models.HubSubscription, error)

	// GetByChannelID retrieves all subscriptions for a channel.
	GetByChannelID(ctx context.Context, channelID string) ([]*models.HubSubscription, error)

	// Update updates an existing subscription.
	Update(ctx context.Context, sub *models.HubSubscription) error

	// GetRenewable retrieves leases the renewer should subscribe again: active
	// leases expiring within the window, failed leases, and pending leases the
	// hub has not verified for pendingAfter. Expired leases are never returned.
	GetRenewable(ctx context.Context, within, pendingAfter time.Duration, limit int) ([]*models.HubSubscription, error)

	// GetByTopic retrieves the subscription for a hub topic URL.
	GetByTopic(ctx context.Context, topicURL string) (*models.HubSubscription, error)

	// List retrieves subscriptions, optionally filtered by status.
	List(ctx context.Context, status string, limit, offset int) ([]*models.HubSubscription, error)
}

type hubSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewHubSubscriptionRepository creates a new HubSubscriptionRepository.
func NewHubSubscriptionRepository(pool *pgxpool.Pool) HubSubscriptionRepository {
	return &hubSubscriptionRepository{pool: pool}
}

func (r *hubSubscriptionRepository) Create(ctx context.Context, sub *models.HubSubscription) error {
	query := `
		INSERT INTO hub_subscriptions (
			channel_id, topic_url, callback_url, hub_url, lease_seconds,
			expires_at, status, secret, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		sub.ChannelID,
		sub.TopicURL,
		sub.CallbackURL,
		sub.HubURL,
		sub.LeaseSeconds,
		sub.ExpiresAt,
		sub.Status,
		sub.Secret,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Scan(
		&sub.ID,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)

	if err != nil {
		return db.WrapError(err, "create hub subscription")
	}

	return nil
}

func (r *hubSubscriptionRepository) GetByID(ctx context.Context, id int64) (*models.HubSubscription, error) {
	query := `
		SELECT id, channel_id, topic_url, callback_url, hub_url, lease_seconds,
		       expires_at, status, secret, last_verified_at, created_at, updated_at
		FROM hub_subscriptions
		WHERE id = $1
	`

	sub := &models.HubSubscription{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sub.ID,
		&sub.ChannelID,
		&sub.TopicURL,
		&sub.CallbackURL,
		&sub.HubURL,
		&sub.LeaseSeconds,
		&sub.ExpiresAt,
		&sub.Status,
		&sub.Secret,
		&sub.LastVerifiedAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)

	if err != nil {
		return nil, db.WrapError(err, "get hub subscription by id")
	}

	return sub, nil
}

func (r *hubSubscriptionRepository) GetByChannelID(ctx context.Context, channelID string) ([]*models.HubSubscription, error) {
	query := `
		SELECT id, channel_id, topic_url, callback_url, hub_url, lease_seconds,
		       expires_at, status, secret, last_verified_at, created_at, updated_at
		FROM hub_subscriptions
		WHERE channel_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, db.WrapError(err, "get hub subscriptions by channel id")
	}
	defer rows.Close()

	return scanHubSubscriptions(rows)
}

func (r *hubSubscriptionRepository) Update(ctx context.Context, sub *models.HubSubscription) error {
	query := `
		UPDATE hub_subscriptions
		SET channel_id = $1,
		    topic_url = $2,
		    callback_url = $3,
		    hub_url = $4,
		    lease_seconds = $5,
		    expires_at = $6,
		    status = $7,
		    secret = $8,
		    last_verified_at = $9
		WHERE id = $10
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		sub.ChannelID,
		sub.TopicURL,
		sub.CallbackURL,
		sub.HubURL,
		sub.LeaseSeconds,
		sub.ExpiresAt,
		sub.Status,
		sub.Secret,
		sub.LastVerifiedAt,
		sub.ID,
	).Scan(&sub.UpdatedAt)

	if err != nil {
		return db.WrapError(err, "update hub subscription")
	}

	return nil
}

func (r *hubSubscriptionRepository) GetRenewable(ctx context.Context, within, pendingAfter time.Duration, limit int) ([]*models.HubSubscription, error) {
	query := `
		SELECT id, channel_id, topic_url, callback_url, hub_url, lease_seconds,
		       expires_at, status, secret, last_verified_at, created_at, updated_at
		FROM hub_subscriptions
		WHERE (status = $1 AND expires_at <= $2)
		   OR status = $3
		   OR (status = $4 AND updated_at <= $5)
		ORDER BY expires_at ASC
		LIMIT $6
	`

	now := time.Now()
	rows, err := r.pool.Query(ctx, query,
		models.StatusActive, now.Add(within),
		models.StatusFailed,
		models.StatusPending, now.Add(-pendingAfter),
		limit,
	)
	if err != nil {
		return nil, db.WrapError(err, "get renewable hub subscriptions")
	}
	defer rows.Close()

	return scanHubSubscriptions(rows)
}

func (r *hubSubscriptionRepository) GetByTopic(ctx context.Context, topicURL string) (*models.HubSubscription, error) {
	query := `
		SELECT id, channel_id, topic_url, callback_url, hub_url, lease_seconds,
		       expires_at, status, secret, last_verified_at, created_at, updated_at
		FROM hub_subscriptions
		WHERE topic_url = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`

	rows, err := r.pool.Query(ctx, query, topicURL)
	if err != nil {
		return nil, db.WrapError(err, "get hub subscription by topic")
	}
	defer rows.Close()

	subs, err := scanHubSubscriptions(rows)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, db.WrapError(pgx.ErrNoRows, "get hub subscription by topic")
	}

	return subs[0], nil
}

func (r *hubSubscriptionRepository) List(ctx context.Context, status string, limit, offset int) ([]*models.HubSubscription, error) {
	query := `
		SELECT id, channel_id, topic_url, callback_url, hub_url, lease_seconds,
		       expires_at, status, secret, last_verified_at, created_at, updated_at
		FROM hub_subscriptions
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, db.WrapError(err, "list hub subscriptions")
	}
	defer rows.Close()

	return scanHubSubscriptions(rows)
}

// Helper function to scan multiple subscriptions from query results
func scanHubSubscriptions(rows pgx.Rows) ([]*models.HubSubscription, error) {
	var subscriptions []*models.HubSubscription

	for rows.Next() {
		sub := &models.HubSubscription{}
		err := rows.Scan(
			&sub.ID,
			&sub.ChannelID,
			&sub.TopicURL,
			&sub.CallbackURL,
			&sub.HubURL,
			&sub.LeaseSeconds,
			&sub.ExpiresAt,
			&sub.Status,
			&sub.Secret,
			&sub.LastVerifiedAt,
			&sub.CreatedAt,
			&sub.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan hub subscription: %w", err)
		}
		subscriptions = append(subscriptions, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hub subscriptions: %w", err)
	}

	return subscriptions, nil
}
