package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"fee-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

type ConcessionRepository struct {
	db *sql.DB
}

func NewConcessionRepository(db *sql.DB) *ConcessionRepository {
	return &ConcessionRepository{db: db}
}

// ForStudent returns every concession assigned to the student in the scope, active or not.
// Validity is decided by the resolver at build time.
func (r *ConcessionRepository) ForStudent(ctx context.Context, scope domain.Scope, studentID string) ([]domain.AssignedConcession, error) {
	query := `
		SELECT
			sc.id,
			sc.student_id,
			COALESCE(sc.reason, ''),
			sc.valid_from,
			sc.valid_until,
			COALESCE(sc.notes, ''),
			ct.id,
			ct.name,
			ct.kind,
			ct.value,
			ct.max_value,
			ct.applied_fee_heads,
			ct.applied_fee_terms,
			ct.fee_term_amounts,
			ct.required_documents
		FROM student_concessions sc
		JOIN concession_types ct ON ct.id = sc.concession_type_id
		WHERE sc.student_id = $1 AND ct.branch_id = $2 AND ct.session_id = $3
		ORDER BY sc.valid_from, sc.id
	`

	rows, err := r.db.QueryContext(ctx, query, studentID, scope.BranchID, scope.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load concessions of %s: %w", studentID, err)
	}
	defer rows.Close()

	var out []domain.AssignedConcession
	for rows.Next() {
		var (
			a          domain.AssignedConcession
			validUntil sql.NullTime
			maxValue   decimal.NullDecimal
			heads      []byte
			terms      []byte
			overrides  []byte
			documents  []byte
			kind       string
		)
		if err := rows.Scan(
			&a.Assignment.ID,
			&a.Assignment.StudentID,
			&a.Assignment.Reason,
			&a.Assignment.ValidFrom,
			&validUntil,
			&a.Assignment.Notes,
			&a.Type.ID,
			&a.Type.Name,
			&kind,
			&a.Type.Value,
			&maxValue,
			&heads,
			&terms,
			&overrides,
			&documents,
		); err != nil {
			return nil, err
		}

		a.Assignment.ConcessionTypeID = a.Type.ID
		a.Type.Kind = domain.ConcessionKind(kind)
		if validUntil.Valid {
			v := validUntil.Time
			a.Assignment.ValidUntil = &v
		}
		if maxValue.Valid {
			m := maxValue.Decimal
			a.Type.MaxValue = &m
		}

		if a.Type.AppliedFeeHeads, err = decodeApplicability(heads); err != nil {
			return nil, fmt.Errorf("concession type %s applied_fee_heads: %w", a.Type.ID, err)
		}
		if a.Type.AppliedFeeTerms, err = decodeApplicability(terms); err != nil {
			return nil, fmt.Errorf("concession type %s applied_fee_terms: %w", a.Type.ID, err)
		}
		if a.Type.FeeTermAmounts, err = decodeTermAmounts(overrides); err != nil {
			return nil, fmt.Errorf("concession type %s fee_term_amounts: %w", a.Type.ID, err)
		}
		if len(documents) > 0 {
			if err := json.Unmarshal(documents, &a.Type.RequiredDocuments); err != nil {
				return nil, fmt.Errorf("concession type %s required_documents: %w", a.Type.ID, err)
			}
		}

		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeApplicability maps a NULL column to ApplyAll and a JSON array to ApplyOnly.
// An empty array applies to nothing.
func decodeApplicability(raw []byte) (domain.Applicability, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return domain.ApplyAll(), nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return domain.Applicability{}, err
	}
	return domain.ApplyOnly(ids...), nil
}

// decodeTermAmounts reads {"<term id>": "1500.00"}; numbers and strings are both accepted.
func decodeTermAmounts(raw []byte) (map[string]decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out map[string]decimal.Decimal
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
