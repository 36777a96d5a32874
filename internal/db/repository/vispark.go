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

// VisparkRepository stores saved summaries. Every read and delete is scoped
// to the owning user.
type VisparkRepository interface {
	// Create inserts a vispark and fills in its id and created_at.
	Create(ctx context.Context, v *models.Vispark) error

	// GetForUser retrieves a vispark owned by userID.
	GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.Vispark, error)

	// ListByUser retrieves a user's visparks newest first, with the total count.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Vispark, int, error)

	// DeleteForUser deletes a vispark owned by userID.
	DeleteForUser(ctx context.Context, userID, id uuid.UUID) error

	// ExistsForVideo reports whether the user already saved a summary of videoID.
	ExistsForVideo(ctx context.Context, userID uuid.UUID, videoID string) (bool, error)
}

type visparkRepository struct {
	pool *pgxpool.Pool
}

// NewVisparkRepository creates a new VisparkRepository.
func NewVisparkRepository(pool *pgxpool.Pool) VisparkRepository {
	return &visparkRepository{pool: pool}
}

const visparkColumns = `id, user_id, video_id, video_channel_id, summaries, video_title,
		       video_thumbnails, video_published_at, video_duration,
		       video_default_language, created_at`

func (r *visparkRepository) Create(ctx context.Context, v *models.Vispark) error {
	query := `
		INSERT INTO visparks (
			user_id, video_id, video_channel_id, summaries, video_title,
			video_thumbnails, video_published_at, video_duration, video_default_language
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	thumbnails := v.VideoThumbnails
	if thumbnails == nil {
		thumbnails = map[string]string{}
	}
	summaries := v.Summaries
	if summaries == nil {
		summaries = []string{}
	}

	err := r.pool.QueryRow(ctx, query,
		v.UserID,
		v.VideoID,
		v.VideoChannelID,
		summaries,
		v.VideoTitle,
		thumbnails,
		v.VideoPublishedAt,
		v.VideoDuration,
		v.VideoDefaultLanguage,
	).Scan(&v.ID, &v.CreatedAt)

	if err != nil {
		return db.WrapError(err, "create vispark")
	}

	return nil
}

func (r *visparkRepository) GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.Vispark, error) {
	query := `SELECT ` + visparkColumns + `
		FROM visparks
		WHERE id = $1 AND user_id = $2
	`

	rows, err := r.pool.Query(ctx, query, id, userID)
	if err != nil {
		return nil, db.WrapError(err, "get vispark")
	}
	defer rows.Close()

	visparks, err := scanVisparks(rows)
	if err != nil {
		return nil, err
	}
	if len(visparks) == 0 {
		return nil, db.WrapError(pgx.ErrNoRows, "get vispark")
	}

	return visparks[0], nil
}

func (r *visparkRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Vispark, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM visparks WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, db.WrapError(err, "count visparks")
	}

	query := `SELECT ` + visparkColumns + `
		FROM visparks
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, db.WrapError(err, "list visparks")
	}
	defer rows.Close()

	visparks, err := scanVisparks(rows)
	if err != nil {
		return nil, 0, err
	}

	return visparks, total, nil
}

func (r *visparkRepository) DeleteForUser(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM visparks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return db.WrapError(err, "delete vispark")
	}

	if result.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "delete vispark")
	}

	return nil
}

func (r *visparkRepository) ExistsForVideo(ctx context.Context, userID uuid.UUID, videoID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM visparks WHERE user_id = $1 AND video_id = $2)`,
		userID, videoID,
	).Scan(&exists)
	if err != nil {
		return false, db.WrapError(err, "check vispark exists")
	}

	return exists, nil
}

func scanVisparks(rows pgx.Rows) ([]*models.Vispark, error) {
	var visparks []*models.Vispark

	for rows.Next() {
		v := &models.Vispark{}
		err := rows.Scan(
			&v.ID,
			&v.UserID,
			&v.VideoID,
			&v.VideoChannelID,
			&v.Summaries,
			&v.VideoTitle,
			&v.VideoThumbnails,
			&v.VideoPublishedAt,
			&v.VideoDuration,
			&v.VideoDefaultLanguage,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan vispark: %w", err)
		}
		visparks = append(visparks, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visparks: %w", err)
	}

	return visparks, nil
}
