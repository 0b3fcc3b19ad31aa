package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/CamDog38/formrelay/internal/types"
)

/*
 * Form maintenance operations.
 *
 * Duplicate and Delete are the long-running operations the job tracker
 * runs. Each executes as a single transaction: either the new form plus all
 * its sections and fields exist, or none do. A partially duplicated form is
 * an invariant violation, so any mid-operation error rolls the whole unit
 * back and the job records failed.
 *
 * Section and field positions are preserved; duplicated records get fresh
 * UUIDv7 ids.
 */

// FormOps performs structural form mutations inside transactions.
type FormOps struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewFormOps creates form maintenance operations over the database handle.
func NewFormOps(db *sqlx.DB, logger *zap.Logger) *FormOps {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormOps{db: db, logger: logger}
}

// DuplicateResult is the payload a completed duplication job carries.
type DuplicateResult struct {
	FormID types.FormID `json:"formId"`
}

// DeleteResult is the payload a completed deletion job carries.
type DeleteResult struct {
	FormID types.FormID `json:"formId"`
}

// Duplicate copies a form with its ordered sections and fields, returning
// the new form's id. All-or-nothing: executed as one transaction.
func (o *FormOps) Duplicate(ctx context.Context, formID types.FormID) (types.FormID, error) {
	tx, err := o.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin duplication transaction: %w", err)
	}
	defer tx.Rollback()

	// Timestamps are stored as RFC3339 text for sqlite/postgres parity,
	// so rows scan into string fields (see internal/core/db)
	var form struct {
		FormID    string `db:"form_id"`
		Name      string `db:"name"`
		CreatedAt string `db:"created_at"`
	}
	err = tx.GetContext(ctx, &form, tx.Rebind(
		`SELECT form_id, name, created_at FROM forms WHERE form_id = ?`), formID)
	if err == sql.ErrNoRows {
		return "", types.ErrFormNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load form: %w", err)
	}

	var sections []types.FormSection
	err = tx.SelectContext(ctx, &sections, tx.Rebind(
		`SELECT section_id, form_id, title, position FROM form_sections
		 WHERE form_id = ? ORDER BY position`), formID)
	if err != nil {
		return "", fmt.Errorf("failed to load sections: %w", err)
	}

	var fields []types.FormField
	err = tx.SelectContext(ctx, &fields, tx.Rebind(
		`SELECT field_id, section_id, form_id, field_key, label, field_type, position
		 FROM form_fields WHERE form_id = ? ORDER BY position`), formID)
	if err != nil {
		return "", fmt.Errorf("failed to load fields: %w", err)
	}

	newFormID := types.NewFormID()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO forms (form_id, name, created_at) VALUES (?, ?, ?)`),
		newFormID, form.Name+" (copy)", now.Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to insert duplicated form: %w", err)
	}

	sectionIDs := make(map[types.SectionID]types.SectionID, len(sections))
	for _, s := range sections {
		newID := types.NewSectionID()
		sectionIDs[s.SectionID] = newID
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO form_sections (section_id, form_id, title, position)
			 VALUES (?, ?, ?, ?)`),
			newID, newFormID, s.Title, s.Position)
		if err != nil {
			return "", fmt.Errorf("failed to duplicate section %s: %w", s.SectionID, err)
		}
	}

	for _, f := range fields {
		newSectionID, ok := sectionIDs[f.SectionID]
		if !ok {
			// Field referencing a missing section means the source form is
			// corrupt; abort rather than duplicate the corruption
			return "", fmt.Errorf("field %s references unknown section %s", f.FieldID, f.SectionID)
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO form_fields (field_id, section_id, form_id, field_key, label, field_type, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`),
			types.NewFieldID(), newSectionID, newFormID, f.FieldKey, f.Label, f.FieldType, f.Position)
		if err != nil {
			return "", fmt.Errorf("failed to duplicate field %s: %w", f.FieldKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit duplication: %w", err)
	}

	o.logger.Info("form duplicated",
		zap.String("source_form_id", string(formID)),
		zap.String("new_form_id", string(newFormID)),
		zap.Int("sections", len(sections)),
		zap.Int("fields", len(fields)),
	)
	return newFormID, nil
}

// Delete removes a form together with its sections, fields, and rules in
// one transaction. Submissions and email logs are historical records and
// stay untouched.
func (o *FormOps) Delete(ctx context.Context, formID types.FormID) error {
	tx, err := o.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin deletion transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.GetContext(ctx, &exists, tx.Rebind(
		`SELECT COUNT(*) FROM forms WHERE form_id = ?`), formID)
	if err != nil {
		return fmt.Errorf("failed to check form: %w", err)
	}
	if exists == 0 {
		return types.ErrFormNotFound
	}

	// Children before parent; foreign keys are not assumed to cascade on
	// sqlite deployments
	for _, stmt := range []string{
		`DELETE FROM form_fields WHERE form_id = ?`,
		`DELETE FROM form_sections WHERE form_id = ?`,
		`DELETE FROM rules WHERE form_id = ?`,
		`DELETE FROM forms WHERE form_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), formID); err != nil {
			return fmt.Errorf("failed to delete form records: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deletion: %w", err)
	}

	o.logger.Info("form deleted", zap.String("form_id", string(formID)))
	return nil
}
