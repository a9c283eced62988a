package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Naandalist/moneytalk-sub000/internal/storage"
)

// DeviceIdentity is the stable per-installation identifier that scopes
// every remote row. It is created lazily on first cloud use, persisted in
// the settings store, and regenerated only when missing or in the legacy
// (non-UUID) format.
type DeviceIdentity string

func (d DeviceIdentity) String() string { return string(d) }

// LoadOrCreateIdentity returns the persisted identity, minting and
// persisting a new UUID if none exists or the stored value predates the
// UUID format.
func LoadOrCreateIdentity(ctx context.Context, store *storage.Store) (DeviceIdentity, error) {
	stored, err := store.DeviceID(ctx)
	if err != nil {
		return "", fmt.Errorf("load device identity: %w", err)
	}

	if stored != "" {
		if _, err := uuid.Parse(stored); err == nil {
			return DeviceIdentity(stored), nil
		}
		slog.Warn("Replacing legacy-format device identity", "stored", stored)
	}

	id := uuid.NewString()
	if err := store.SetDeviceID(ctx, id); err != nil {
		return "", fmt.Errorf("persist device identity: %w", err)
	}
	slog.Info("Device identity created", "device_id", id)
	return DeviceIdentity(id), nil
}
