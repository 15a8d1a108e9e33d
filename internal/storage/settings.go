package storage

import (
	"database/sql"
	"fmt"

	"github.com/artmoskal/TGHandyUtils-sub000/internal/types"
)

// GetSettings returns the user's settings, or defaults (notifications on)
// if none have been saved yet.
func (s *Store) GetSettings(userID int64) (*types.UserSettings, error) {
	row := s.db.QueryRow(
		`SELECT user_id, COALESCE(owner_name,''), COALESCE(location,''), notify_enabled
		 FROM user_settings WHERE user_id = ?`, userID)

	var st types.UserSettings
	err := row.Scan(&st.UserID, &st.OwnerName, &st.Location, &st.NotifyEnabled)
	if err == sql.ErrNoRows {
		return &types.UserSettings{UserID: userID, NotifyEnabled: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan settings: %w", err)
	}
	return &st, nil
}

// SaveSettings upserts the user's settings row
func (s *Store) SaveSettings(st *types.UserSettings) error {
	_, err := s.db.Exec(
		`INSERT INTO user_settings (user_id, owner_name, location, notify_enabled)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET owner_name = excluded.owner_name,
			location = excluded.location, notify_enabled = excluded.notify_enabled`,
		st.UserID, st.OwnerName, st.Location, st.NotifyEnabled,
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
