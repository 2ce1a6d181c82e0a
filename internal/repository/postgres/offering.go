package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dkovalev/coinfunnel/internal/apperrors"
	"github.com/dkovalev/coinfunnel/internal/models"
	"github.com/dkovalev/coinfunnel/internal/repository"
)

type OfferingRepo struct {
	DB DBTX
}

const createWebinar = `-- name: CreateWebinar
INSERT INTO webinars (id, starts_at, topic, link)
VALUES ($1, $2, $3, $4)
RETURNING id, starts_at, topic, link
`

func (r *OfferingRepo) CreateWebinar(ctx context.Context, startsAt time.Time, topic string, link string) (models.Webinar, error) {
	rows, _ := r.DB.Query(ctx, createWebinar, uuid.New(), startsAt, topic, link)
	webinar, err := pgx.CollectOneRow(rows, rowToWebinar)
	if err != nil {
		return webinar, fmt.Errorf("db error: %w", err)
	}

	return webinar, nil
}

const nextWebinar = `-- name: NextWebinar
SELECT id, starts_at, topic, link FROM webinars
WHERE starts_at > $1
ORDER BY starts_at ASC
LIMIT 1
`

func (r *OfferingRepo) NextWebinar(ctx context.Context, after time.Time) (models.Webinar, error) {
	rows, _ := r.DB.Query(ctx, nextWebinar, after)
	webinar, err := pgx.CollectOneRow(rows, rowToWebinar)

	switch {
	case err == nil:
		return webinar, nil
	case errors.Is(err, pgx.ErrNoRows):
		return webinar, apperrors.ErrWebinarNotFound
	default:
		return webinar, fmt.Errorf("db error: %w", err)
	}
}

const getWebinar = `-- name: GetWebinar
SELECT id, starts_at, topic, link FROM webinars
WHERE id = $1
`

func (r *OfferingRepo) GetWebinar(ctx context.Context, webinarID uuid.UUID) (models.Webinar, error) {
	rows, _ := r.DB.Query(ctx, getWebinar, webinarID)
	webinar, err := pgx.CollectOneRow(rows, rowToWebinar)

	switch {
	case err == nil:
		return webinar, nil
	case errors.Is(err, pgx.ErrNoRows):
		return webinar, apperrors.ErrWebinarNotFound
	default:
		return webinar, fmt.Errorf("db error: %w", err)
	}
}

const createCourse = `-- name: CreateCourse
INSERT INTO courses (id, name, starts_at, price, description, link, active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, name, starts_at, price, description, link, active
`

func (r *OfferingRepo) CreateCourse(ctx context.Context, arg repository.CreateCourseParams) (models.Course, error) {
	rows, _ := r.DB.Query(ctx, createCourse, uuid.New(), arg.Name, arg.StartsAt, arg.Price, arg.Description, arg.Link, arg.Active)
	course, err := pgx.CollectOneRow(rows, rowToCourse)
	if err != nil {
		return course, fmt.Errorf("db error: %w", err)
	}

	return course, nil
}

// The single course offered for purchase: active, not started yet, soonest start wins
const activeCourse = `-- name: ActiveCourse
SELECT id, created_at, name, starts_at, price, description, link, active FROM courses
WHERE active AND starts_at > $1
ORDER BY starts_at ASC
LIMIT 1
`

func (r *OfferingRepo) ActiveCourse(ctx context.Context, after time.Time) (models.Course, error) {
	rows, _ := r.DB.Query(ctx, activeCourse, after)
	course, err := pgx.CollectOneRow(rows, rowToCourse)

	switch {
	case err == nil:
		return course, nil
	case errors.Is(err, pgx.ErrNoRows):
		return course, apperrors.ErrCourseNotFound
	default:
		return course, fmt.Errorf("db error: %w", err)
	}
}

const getCourse = `-- name: GetCourse
SELECT id, created_at, name, starts_at, price, description, link, active FROM courses
WHERE id = $1
`

func (r *OfferingRepo) GetCourse(ctx context.Context, courseID uuid.UUID) (models.Course, error) {
	rows, _ := r.DB.Query(ctx, getCourse, courseID)
	course, err := pgx.CollectOneRow(rows, rowToCourse)

	switch {
	case err == nil:
		return course, nil
	case errors.Is(err, pgx.ErrNoRows):
		return course, apperrors.ErrCourseNotFound
	default:
		return course, fmt.Errorf("db error: %w", err)
	}
}

func rowToWebinar(row pgx.CollectableRow) (models.Webinar, error) {
	var w models.Webinar
	err := row.Scan(&w.ID, &w.StartsAt, &w.Topic, &w.Link)
	return w, err
}

func rowToCourse(row pgx.CollectableRow) (models.Course, error) {
	var c models.Course
	err := row.Scan(&c.ID, &c.CreatedAt, &c.Name, &c.StartsAt, &c.Price, &c.Description, &c.Link, &c.Active)
	return c, err
}
