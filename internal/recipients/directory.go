package recipients

import (
	"fmt"

	"github.com/artmoskal/TGHandyUtils-sub000/internal/logging"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/types"
)

// Store is the persistence surface the directory needs
type Store interface {
	ListRecipients(userID int64) ([]types.Recipient, error)
	GetRecipient(id string) (*types.Recipient, error)
	InsertRecipient(r *types.Recipient) error
	UpdateRecipient(r *types.Recipient) error
	DeleteRecipient(id string) error
	CountRecipients(userID int64) (int, error)
}

// Directory answers "which recipients should this task go to" and manages
// a user's accounts.
type Directory struct {
	store Store
}

// New creates a recipient directory backed by store
func New(store Store) *Directory {
	return &Directory{store: store}
}

// DefaultsFor returns the user's default recipient set: personal AND
// enabled. An empty result is a meaningful answer, not an error; the
// user may deliberately have no defaults.
func (d *Directory) DefaultsFor(userID int64) ([]types.Recipient, error) {
	all, err := d.store.ListRecipients(userID)
	if err != nil {
		return nil, err
	}
	var defaults []types.Recipient
	for _, r := range all {
		if r.IsPersonal && r.Enabled {
			defaults = append(defaults, r)
		}
	}
	return defaults, nil
}

// EnabledFor returns all enabled recipients, personal and shared, for
// manual selection UIs and "add to…" actions.
func (d *Directory) EnabledFor(userID int64) ([]types.Recipient, error) {
	all, err := d.store.ListRecipients(userID)
	if err != nil {
		return nil, err
	}
	var enabled []types.Recipient
	for _, r := range all {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	return enabled, nil
}

// Resolve looks up explicit recipient ids, keeping only enabled ones;
// missing or disabled ids are dropped with a warning. With no explicit
// ids it falls back to the user's defaults.
func (d *Directory) Resolve(userID int64, explicitIDs []string) ([]types.Recipient, error) {
	if len(explicitIDs) == 0 {
		return d.DefaultsFor(userID)
	}

	var resolved []types.Recipient
	for _, id := range explicitIDs {
		r, err := d.store.GetRecipient(id)
		if err != nil {
			logging.Warn("recipients", "dropping recipient %s: %v", id, err)
			continue
		}
		if r.UserID != userID {
			logging.Warn("recipients", "dropping recipient %s: not owned by user %d", id, userID)
			continue
		}
		if !r.Enabled {
			logging.Warn("recipients", "dropping recipient %s (%s): disabled", id, r.Name)
			continue
		}
		resolved = append(resolved, *r)
	}
	return resolved, nil
}

// AddPersonal adds a recipient owned by the user. The user's first
// recipient ever is marked default automatically.
func (d *Directory) AddPersonal(userID int64, name string, platform types.PlatformType, credentials string, cfg map[string]string) (*types.Recipient, error) {
	return d.add(userID, name, platform, credentials, cfg, true)
}

// AddShared adds a recipient delegated by another party. Shared recipients
// are never auto-selected.
func (d *Directory) AddShared(userID int64, name string, platform types.PlatformType, credentials string, cfg map[string]string) (*types.Recipient, error) {
	return d.add(userID, name, platform, credentials, cfg, false)
}

func (d *Directory) add(userID int64, name string, platform types.PlatformType, credentials string, cfg map[string]string, personal bool) (*types.Recipient, error) {
	count, err := d.store.CountRecipients(userID)
	if err != nil {
		return nil, err
	}

	r := &types.Recipient{
		UserID:      userID,
		Name:        name,
		Platform:    platform,
		Credentials: credentials,
		Config:      cfg,
		IsPersonal:  personal,
		IsDefault:   count == 0,
		Enabled:     true,
	}
	if err := d.store.InsertRecipient(r); err != nil {
		return nil, err
	}
	logging.Info("recipients", "added %s recipient %q (%s) for user %d",
		personalLabel(personal), name, platform, userID)
	return r, nil
}

// SetEnabled toggles a recipient on or off
func (d *Directory) SetEnabled(id string, enabled bool) error {
	r, err := d.store.GetRecipient(id)
	if err != nil {
		return fmt.Errorf("recipient %s: %w", id, err)
	}
	r.Enabled = enabled
	return d.store.UpdateRecipient(r)
}

// SetDefault flags or unflags a recipient as an explicit default
func (d *Directory) SetDefault(id string, isDefault bool) error {
	r, err := d.store.GetRecipient(id)
	if err != nil {
		return fmt.Errorf("recipient %s: %w", id, err)
	}
	r.IsDefault = isDefault
	return d.store.UpdateRecipient(r)
}

// Remove deletes a recipient. Any pending dispatch simply stops seeing it
// on its next resolve; removing an unknown id is not an error.
func (d *Directory) Remove(id string) error {
	return d.store.DeleteRecipient(id)
}

func personalLabel(personal bool) string {
	if personal {
		return "personal"
	}
	return "shared"
}
