package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vispark/vispark-api/internal/db"
	"github.com/vispark/vispark-api/internal/db/models"
)

// NotificationRepository defines operations for per-user video notifications.
type NotificationRepository interface {
	// CreateIfAbsent inserts the notification unless the user already has one
	// for the video. It reports whether a row was inserted.
	CreateIfAbsent(ctx context.Context, n *models.VideoNotification) (bool, error)

	// ListByUser retrieves a user's notifications newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, unsummarizedOnly bool, limit, offset int) ([]*models.VideoNotification, error)

	// ListPendingByVideo retrieves unsummarized notifications for a video across users.
	ListPendingByVideo(ctx context.Context, videoID string) ([]*models.VideoNotification, error)

	// SetSummaryGenerated updates the flag on a notification owned by userID.
	SetSummaryGenerated(ctx context.Context, userID uuid.UUID, id int64, generated bool) (*models.VideoNotification, error)

	// MarkVideoSummarized flags the user's notification for videoID as summarized.
	MarkVideoSummarized(ctx context.Context, userID uuid.UUID, videoID string) error
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) CreateIfAbsent(ctx context.Context, n *models.VideoNotification) (bool, error) {
	query := `
		INSERT INTO video_notifications (user_id, channel_id, video_id, title, published_at, summary_generated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, video_id) DO NOTHING
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		n.UserID,
		n.ChannelID,
		n.VideoID,
		n.Title,
		n.PublishedAt,
		n.SummaryGenerated,
	).Scan(&n.ID, &n.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, db.WrapError(err, "create video notification")
	}

	return true, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unsummarizedOnly bool, limit, offset int) ([]*models.VideoNotification, error) {
	query := `
		SELECT id, user_id, channel_id, video_id, title, published_at, summary_generated, created_at
		FROM video_notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT summary_generated)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.pool.Query(ctx, query, userID, unsummarizedOnly, limit, offset)
	if err != nil {
		return nil, db.WrapError(err, "list video notifications")
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func (r *notificationRepository) ListPendingByVideo(ctx context.Context, videoID string) ([]*models.VideoNotification, error) {
	query := `
		SELECT id, user_id, channel_id, video_id, title, published_at, summary_generated, created_at
		FROM video_notifications
		WHERE video_id = $1 AND NOT summary_generated
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, videoID)
	if err != nil {
		return nil, db.WrapError(err, "list pending notifications")
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func (r *notificationRepository) SetSummaryGenerated(ctx context.Context, userID uuid.UUID, id int64, generated bool) (*models.VideoNotification, error) {
	query := `
		UPDATE video_notifications
		SET summary_generated = $1
		WHERE id = $2 AND user_id = $3
		RETURNING id, user_id, channel_id, video_id, title, published_at, summary_generated, created_at
	`

	rows, err := r.pool.Query(ctx, query, generated, id, userID)
	if err != nil {
		return nil, db.WrapError(err, "update video notification")
	}
	defer rows.Close()

	notifications, err := scanNotifications(rows)
	if err != nil {
		return nil, err
	}
	if len(notifications) == 0 {
		return nil, db.WrapError(pgx.ErrNoRows, "update video notification")
	}

	return notifications[0], nil
}

func (r *notificationRepository) MarkVideoSummarized(ctx context.Context, userID uuid.UUID, videoID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE video_notifications SET summary_generated = TRUE WHERE user_id = $1 AND video_id = $2`,
		userID, videoID,
	)
	if err != nil {
		return db.WrapError(err, "mark video summarized")
	}

	return nil
}

func scanNotifications(rows pgx.Rows) ([]*models.VideoNotification, error) {
	var notifications []*models.VideoNotification

	for rows.Next() {
		n := &models.VideoNotification{}
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.ChannelID,
			&n.VideoID,
			&n.Title,
			&n.PublishedAt,
			&n.SummaryGenerated,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan video notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video notifications: %w", err)
	}

	return notifications, nil
}
