package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/colorbook/pkg/domain"
	"github.com/jordanlanch/colorbook/pkg/models"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

// Table names are interpolated into SQL, so they only ever come from here.
var resourceTables = map[subscription.Resource]string{
	subscription.ResourceProjects: "projects",
	subscription.ResourceStories:  "stories",
	subscription.ResourceImages:   "images",
	subscription.ResourceExports:  "exports",
}

var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"title":      "title",
}

func tableFor(r subscription.Resource) (string, error) {
	table, ok := resourceTables[r]
	if !ok {
		return "", fmt.Errorf("unknown resource %q", r)
	}
	return table, nil
}

// CountResources counts a user's records of one kind, optionally only those
// created at or after since.
func (s *SQLStore) CountResources(ctx context.Context, userID int, r subscription.Resource, since *time.Time) (int, error) {
	table, err := tableFor(r)
	if err != nil {
		return 0, err
	}

	var count int
	if since == nil {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+table+` WHERE user_id = $1`, userID).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+table+` WHERE user_id = $1 AND created_at >= $2`,
			userID, utc(*since)).Scan(&count)
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CreateResource inserts r and sets its ID. Zero timestamps default to now.
func (s *SQLStore) CreateResource(ctx context.Context, r *models.Resource) error {
	table, err := tableFor(r.Kind)
	if err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC().Truncate(time.Second)
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO `+table+` (user_id, title, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		r.UserID, r.Title, utc(r.CreatedAt), utc(r.UpdatedAt),
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", r.Kind, err)
	}
	return nil
}

// GetResource returns one of the user's records. Records owned by other
// users are reported as not found.
func (s *SQLStore) GetResource(ctx context.Context, userID int, kind subscription.Resource, id int) (*models.Resource, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	r := &models.Resource{Kind: kind}
	err = s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM `+table+` WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&r.ID, &r.UserID, &r.Title, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError(string(kind))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return r, nil
}

// ListResources returns one page of a user's records and the total count
func (s *SQLStore) ListResources(ctx context.Context, userID int, kind subscription.Resource, q models.PaginationQuery) ([]models.Resource, int, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.CountResources(ctx, userID, kind, nil)
	if err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[q.Sort]
	if !ok {
		column = "created_at"
	}
	order := "DESC"
	if q.Order == "asc" {
		order = "ASC"
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, user_id, title, created_at, updated_at FROM %s
	WHERE user_id = $1 ORDER BY %s %s, id %s LIMIT $2 OFFSET $3`, table, column, order, order),
		userID, q.Limit, q.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []models.Resource{}
	for rows.Next() {
		r := models.Resource{Kind: kind}
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
