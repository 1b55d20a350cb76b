package config

import (
	"fmt"

	"github.com/backkem/doorlock/pkg/nvm"
)

// OpenStore opens the configured object store. The returned close function
// releases it and is never nil.
func (s StorageConfig) OpenStore() (nvm.Store, func() error, error) {
	switch s.Driver {
	case DriverMemory, "":
		return nvm.NewMemoryStore(), func() error { return nil }, nil
	case DriverSQLite:
		store, err := nvm.OpenSQLite(nvm.SQLiteConfig{
			Path:        s.Path,
			BusyTimeout: s.BusyTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", s.Driver)
	}
}
