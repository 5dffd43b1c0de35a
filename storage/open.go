package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageDisabled is returned by Open for the "none" driver.
	ErrStorageDisabled = errors.New("storage disabled")
	ErrUnknownDriver   = errors.New("unknown storage driver")
)

// Open returns the ReviewWriter for driver ("postgres" or "sqlite").
func Open(driver, dsn string) (ReviewWriter, error) {
	switch driver {
	case "postgres":
		w, err := NewPostgresWriter(dsn)
		if err != nil {
			return nil, err
		}
		return w, nil
	case "sqlite":
		w, err := NewSQLiteWriter(dsn)
		if err != nil {
			return nil, err
		}
		return w, nil
	case "none", "":
		return nil, ErrStorageDisabled
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}
