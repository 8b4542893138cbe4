package services

import (
	"reward-engine/apierr"
)

// storeFailure wraps unexpected repo errors, passing through errors that already carry a status.
func storeFailure(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apierr.As(err); ok {
		return err
	}
	return apierr.StoreFailure(err)
}
