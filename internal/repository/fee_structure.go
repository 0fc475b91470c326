package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fee-ledger/internal/domain"
)

type FeeStructureRepository struct {
	db    *sql.DB
	cache *ReferenceCache
}

func NewFeeStructureRepository(db *sql.DB, cache *ReferenceCache) *FeeStructureRepository {
	return &FeeStructureRepository{db: db, cache: cache}
}

// ForStudent loads the student and the fee structure of its class for the scope.
// Entries come back in insertion order so the first definition of a pair wins downstream.
func (r *FeeStructureRepository) ForStudent(ctx context.Context, scope domain.Scope, studentID string) (domain.Student, domain.FeeStructure, error) {
	student, err := r.student(ctx, scope, studentID)
	if err != nil {
		return domain.Student{}, domain.FeeStructure{}, err
	}

	entries, err := r.entries(ctx, scope, student.ClassID)
	if err != nil {
		return domain.Student{}, domain.FeeStructure{}, err
	}

	heads, terms, err := r.reference(ctx, scope)
	if err != nil {
		return domain.Student{}, domain.FeeStructure{}, err
	}
	// a head or term created after the cache was filled
	if !referencesKnown(entries, heads, terms) {
		r.cache.Invalidate(scope)
		if heads, terms, err = r.reference(ctx, scope); err != nil {
			return domain.Student{}, domain.FeeStructure{}, err
		}
	}

	return student, domain.FeeStructure{Heads: heads, Terms: terms, Entries: entries}, nil
}

func (r *FeeStructureRepository) reference(ctx context.Context, scope domain.Scope) ([]domain.FeeHead, []domain.FeeTerm, error) {
	heads, err := r.Heads(ctx, scope)
	if err != nil {
		return nil, nil, err
	}
	terms, err := r.Terms(ctx, scope)
	if err != nil {
		return nil, nil, err
	}
	return heads, terms, nil
}

func referencesKnown(entries []domain.FeeStructureEntry, heads []domain.FeeHead, terms []domain.FeeTerm) bool {
	headIDs := make(map[string]struct{}, len(heads))
	for _, h := range heads {
		headIDs[h.ID] = struct{}{}
	}
	termIDs := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		termIDs[t.ID] = struct{}{}
	}
	for _, e := range entries {
		if _, ok := headIDs[e.FeeHeadID]; !ok {
			return false
		}
		if _, ok := termIDs[e.FeeTermID]; !ok {
			return false
		}
	}
	return true
}

func (r *FeeStructureRepository) student(ctx context.Context, scope domain.Scope, studentID string) (domain.Student, error) {
	query := `
		SELECT s.id, s.branch_id, s.session_id, s.class_id, s.name, COALESCE(s.admission_number, '')
		FROM students s
		WHERE s.id = $1 AND s.branch_id = $2 AND s.session_id = $3
	`

	var s domain.Student
	err := r.db.QueryRowContext(ctx, query, studentID, scope.BranchID, scope.SessionID).Scan(
		&s.ID,
		&s.BranchID,
		&s.SessionID,
		&s.ClassID,
		&s.Name,
		&s.AdmissionNumber,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Student{}, fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}
	if err != nil {
		return domain.Student{}, fmt.Errorf("load student %s: %w", studentID, err)
	}
	return s, nil
}

func (r *FeeStructureRepository) Heads(ctx context.Context, scope domain.Scope) ([]domain.FeeHead, error) {
	if heads, ok := r.cache.Heads(scope); ok {
		return heads, nil
	}

	query := `
		SELECT h.id, h.name, h.is_system_defined
		FROM fee_heads h
		WHERE h.branch_id = $1 AND h.session_id = $2
		ORDER BY h.position, h.name
	`
	rows, err := r.db.QueryContext(ctx, query, scope.BranchID, scope.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load fee heads: %w", err)
	}
	defer rows.Close()

	var heads []domain.FeeHead
	for rows.Next() {
		var h domain.FeeHead
		if err := rows.Scan(&h.ID, &h.Name, &h.IsSystemDefined); err != nil {
			return nil, err
		}
		heads = append(heads, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.cache.SetHeads(scope, heads)
	return heads, nil
}

func (r *FeeStructureRepository) Terms(ctx context.Context, scope domain.Scope) ([]domain.FeeTerm, error) {
	if terms, ok := r.cache.Terms(scope); ok {
		return terms, nil
	}

	query := `
		SELECT t.id, t.name, t.due_date
		FROM fee_terms t
		WHERE t.branch_id = $1 AND t.session_id = $2
		ORDER BY t.position, t.due_date
	`
	rows, err := r.db.QueryContext(ctx, query, scope.BranchID, scope.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load fee terms: %w", err)
	}
	defer rows.Close()

	var terms []domain.FeeTerm
	for rows.Next() {
		var t domain.FeeTerm
		if err := rows.Scan(&t.ID, &t.Name, &t.DueDate); err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.cache.SetTerms(scope, terms)
	return terms, nil
}

func (r *FeeStructureRepository) entries(ctx context.Context, scope domain.Scope, classID string) ([]domain.FeeStructureEntry, error) {
	query := `
		SELECT fs.fee_head_id, fs.fee_term_id, fs.amount
		FROM fee_structures fs
		WHERE fs.branch_id = $1 AND fs.session_id = $2 AND fs.class_id = $3
		ORDER BY fs.created_at, fs.id
	`
	rows, err := r.db.QueryContext(ctx, query, scope.BranchID, scope.SessionID, classID)
	if err != nil {
		return nil, fmt.Errorf("load fee structure of class %s: %w", classID, err)
	}
	defer rows.Close()

	var out []domain.FeeStructureEntry
	for rows.Next() {
		var e domain.FeeStructureEntry
		if err := rows.Scan(&e.FeeHeadID, &e.FeeTermID, &e.BaseAmount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
