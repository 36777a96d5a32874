package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vispark/vispark-api/internal/db"
	"github.com/vispark/vispark-api/internal/db/models"
)

// ChannelSubscriptionRepository defines operations for user channel subscriptions.
type ChannelSubscriptionRepository interface {
	// Create subscribes a user to a channel. Returns ErrDuplicateKey if already subscribed.
	Create(ctx context.Context, sub *models.ChannelSubscription) error

	// ListByUser retrieves a user's subscriptions, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ChannelSubscription, error)

	// Delete removes a user's subscription to a channel.
	Delete(ctx context.Context, userID uuid.UUID, channelID string) error

	// ListUserIDsByChannel retrieves the users subscribed to a channel.
	ListUserIDsByChannel(ctx context.Context, channelID string) ([]uuid.UUID, error)

	// CountByChannel counts the users subscribed to a channel.
	CountByChannel(ctx context.Context, channelID string) (int, error)
}

type channelSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewChannelSubscriptionRepository creates a new ChannelSubscriptionRepository.
func NewChannelSubscriptionRepository(pool *pgxpool.Pool) ChannelSubscriptionRepository {
	return &channelSubscriptionRepository{pool: pool}
}

func (r *channelSubscriptionRepository) Create(ctx context.Context, sub *models.ChannelSubscription) error {
	query := `
		INSERT INTO channel_subscriptions (user_id, channel_id, channel_title, channel_thumbnail_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		sub.UserID,
		sub.ChannelID,
		sub.ChannelTitle,
		sub.ChannelThumbnailURL,
	).Scan(&sub.ID, &sub.CreatedAt)

	if err != nil {
		return db.WrapError(err, "create channel subscription")
	}

	return nil
}

func (r *channelSubscriptionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ChannelSubscription, error) {
	query := `
		SELECT id, user_id, channel_id, channel_title, channel_thumbnail_url, created_at
		FROM channel_subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, db.WrapError(err, "list channel subscriptions")
	}
	defer rows.Close()

	var subs []*models.ChannelSubscription
	for rows.Next() {
		sub := &models.ChannelSubscription{}
		err := rows.Scan(
			&sub.ID,
			&sub.UserID,
			&sub.ChannelID,
			&sub.ChannelTitle,
			&sub.ChannelThumbnailURL,
			&sub.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan channel subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel subscriptions: %w", err)
	}

	return subs, nil
}

func (r *channelSubscriptionRepository) Delete(ctx context.Context, userID uuid.UUID, channelID string) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM channel_subscriptions WHERE user_id = $1 AND channel_id = $2`,
		userID, channelID,
	)
	if err != nil {
		return db.WrapError(err, "delete channel subscription")
	}

	if result.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "delete channel subscription")
	}

	return nil
}

func (r *channelSubscriptionRepository) ListUserIDsByChannel(ctx context.Context, channelID string) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM channel_subscriptions WHERE channel_id = $1 ORDER BY id`,
		channelID,
	)
	if err != nil {
		return nil, db.WrapError(err, "list channel subscribers")
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, db.WrapError(err, "scan channel subscribers")
	}

	return ids, nil
}

func (r *channelSubscriptionRepository) CountByChannel(ctx context.Context, channelID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM channel_subscriptions WHERE channel_id = $1`,
		channelID,
	).Scan(&count)
	if err != nil {
		return 0, db.WrapError(err, "count channel subscribers")
	}

	return count, nil
}
