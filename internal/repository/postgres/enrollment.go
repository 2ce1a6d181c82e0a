package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dkovalev/coinfunnel/internal/apperrors"
)

type EnrollmentRepo struct {
	DB DBTX
}

// ON CONFLICT DO NOTHING makes double enrollment a no-op:
// zero affected rows means the pair was already registered
const enrollWebinar = `-- name: EnrollWebinar
INSERT INTO webinar_registrations (user_id, webinar_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`

func (r *EnrollmentRepo) EnrollWebinar(ctx context.Context, userID uuid.UUID, webinarID uuid.UUID) (bool, error) {
	tag, err := r.DB.Exec(ctx, enrollWebinar, userID, webinarID)
	if err != nil {
		return false, mapEnrollError(err, apperrors.ErrWebinarNotFound)
	}

	return tag.RowsAffected() > 0, nil
}

const enrollCourse = `-- name: EnrollCourse
INSERT INTO course_registrations (user_id, course_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`

func (r *EnrollmentRepo) EnrollCourse(ctx context.Context, userID uuid.UUID, courseID uuid.UUID) (bool, error) {
	tag, err := r.DB.Exec(ctx, enrollCourse, userID, courseID)
	if err != nil {
		return false, mapEnrollError(err, apperrors.ErrCourseNotFound)
	}

	return tag.RowsAffected() > 0, nil
}

const isEnrolledWebinar = `-- name: IsEnrolledWebinar
SELECT EXISTS (
	SELECT 1 FROM webinar_registrations
	WHERE user_id = $1 AND webinar_id = $2
)
`

func (r *EnrollmentRepo) IsEnrolledWebinar(ctx context.Context, userID uuid.UUID, webinarID uuid.UUID) (bool, error) {
	var enrolled bool

	err := r.DB.QueryRow(ctx, isEnrolledWebinar, userID, webinarID).Scan(&enrolled)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return enrolled, nil
}

const isEnrolledCourse = `-- name: IsEnrolledCourse
SELECT EXISTS (
	SELECT 1 FROM course_registrations
	WHERE user_id = $1 AND course_id = $2
)
`

func (r *EnrollmentRepo) IsEnrolledCourse(ctx context.Context, userID uuid.UUID, courseID uuid.UUID) (bool, error) {
	var enrolled bool

	err := r.DB.QueryRow(ctx, isEnrolledCourse, userID, courseID).Scan(&enrolled)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return enrolled, nil
}

// A foreign key violation on insert means one side of the pair does not exist.
// The user side is reported as ErrUserNotFound, the offering side as offeringErr.
func mapEnrollError(err error, offeringErr error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.ForeignKeyViolation {
		return fmt.Errorf("db error: %w", err)
	}

	if pgErr.ConstraintName != "" && pgErr.ConstraintName != "webinar_registrations_user_id_fkey" && pgErr.ConstraintName != "course_registrations_user_id_fkey" {
		return offeringErr
	}

	return apperrors.ErrUserNotFound
}
