package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-internship-api/internal/models"
)

// ClassRepository resolves classes and their homeroom teachers.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get class: %w", err)
	}
	return &class, nil
}

// FindHomeroomClass returns the class the teacher is homeroom teacher of.
func (r *ClassRepository) FindHomeroomClass(ctx context.Context, teacherID string) (*models.Class, error) {
	const query = `
SELECT c.id, c.name
FROM classes c
JOIN classes_teacher ct ON ct.class_id = c.id
WHERE ct.teacher_id = $1 AND ct.role = $2
ORDER BY c.name ASC
LIMIT 1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, teacherID, models.HomeroomRole); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get homeroom class: %w", err)
	}
	return &class, nil
}
