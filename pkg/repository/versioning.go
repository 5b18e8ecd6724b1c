package repository

import (
	"fmt"

	"github.com/nimburion/searchrepo/pkg/mapping"
	"github.com/nimburion/searchrepo/pkg/store/opensearch"
)

// Versioned is implemented by entities that manage their own optimistic-locking version.
// Entities that don't implement it can tag an integer field with search:"version".
type Versioned interface {
	GetVersion() int64
	SetVersion(version int64)
}

// OptimisticLockError reports a save rejected because the stored document moved past the
// version the entity was read at. Actual is -1 when the stored version could not be read.
// It matches opensearch.ErrVersionConflict with errors.Is.
type OptimisticLockError struct {
	EntityID string
	Expected int64
	Actual   int64
}

func NewOptimisticLockError(entityID string, expected, actual int64) *OptimisticLockError {
	return &OptimisticLockError{EntityID: entityID, Expected: expected, Actual: actual}
}

func (e *OptimisticLockError) Error() string {
	if e.Actual < 0 {
		return fmt.Sprintf("document %s was modified concurrently (read at version %d)", e.EntityID, e.Expected)
	}
	return fmt.Sprintf("document %s was modified concurrently (read at version %d, stored version %d)", e.EntityID, e.Expected, e.Actual)
}

func (e *OptimisticLockError) Unwrap() error { return opensearch.ErrVersionConflict }

// entityVersion reports the current version of entity and whether it is versioned at all.
func entityVersion(entity any) (int64, bool) {
	if v, ok := entity.(Versioned); ok {
		return v.GetVersion(), true
	}
	return mapping.EntityVersion(entity)
}

func setEntityVersion(entity any, version int64) error {
	if v, ok := entity.(Versioned); ok {
		v.SetVersion(version)
		return nil
	}
	return mapping.SetEntityVersion(entity, version)
}
