package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/artmoskal/TGHandyUtils-sub000/internal/types"
)

const recipientCols = `id, user_id, name, platform_type, credentials, COALESCE(platform_config,''), is_personal, is_default, enabled, created_at`

// InsertRecipient inserts a recipient row, generating an id if none is set
func (s *Store) InsertRecipient(r *types.Recipient) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	cfg, err := marshalConfig(r.Config)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO recipients (id, user_id, name, platform_type, credentials, platform_config, is_personal, is_default, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Name, string(r.Platform), r.Credentials, cfg,
		r.IsPersonal, r.IsDefault, r.Enabled, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert recipient: %w", err)
	}
	return nil
}

// GetRecipient returns one recipient by id
func (s *Store) GetRecipient(id string) (*types.Recipient, error) {
	row := s.db.QueryRow(`SELECT `+recipientCols+` FROM recipients WHERE id = ?`, id)
	r, err := scanRecipient(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan recipient: %w", err)
	}
	return r, nil
}

// ListRecipients returns all recipients of a user, oldest first
func (s *Store) ListRecipients(userID int64) ([]types.Recipient, error) {
	rows, err := s.db.Query(
		`SELECT `+recipientCols+` FROM recipients WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var result []types.Recipient
	for rows.Next() {
		r, err := scanRecipient(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

// CountRecipients returns how many recipients the user has ever added
func (s *Store) CountRecipients(userID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM recipients WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count recipients: %w", err)
	}
	return n, nil
}

// UpdateRecipient writes all mutable recipient fields
func (s *Store) UpdateRecipient(r *types.Recipient) error {
	cfg, err := marshalConfig(r.Config)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(
		`UPDATE recipients SET name = ?, credentials = ?, platform_config = ?, is_personal = ?, is_default = ?, enabled = ? WHERE id = ?`,
		r.Name, r.Credentials, cfg, r.IsPersonal, r.IsDefault, r.Enabled, r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update recipient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRecipient removes a recipient row
func (s *Store) DeleteRecipient(id string) error {
	_, err := s.db.Exec(`DELETE FROM recipients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recipient: %w", err)
	}
	return nil
}

func marshalConfig(cfg map[string]string) (string, error) {
	if len(cfg) == 0 {
		return "", nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal platform config: %w", err)
	}
	return string(data), nil
}

func scanRecipient(scan func(...any) error) (*types.Recipient, error) {
	var r types.Recipient
	var platform, cfg string
	if err := scan(&r.ID, &r.UserID, &r.Name, &platform, &r.Credentials, &cfg,
		&r.IsPersonal, &r.IsDefault, &r.Enabled, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Platform = types.PlatformType(platform)
	if cfg != "" {
		if err := json.Unmarshal([]byte(cfg), &r.Config); err != nil {
			return nil, fmt.Errorf("failed to parse platform config: %w", err)
		}
	}
	return &r, nil
}
