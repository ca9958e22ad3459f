package service

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"opsboard/internal/core"
	"opsboard/internal/logger"
)

// storeFailed logs the driver detail behind a store error and hands the
// sanitized error back to the caller.
func storeFailed(err error) error {
	var se *core.StoreError
	if errors.As(err, &se) {
		logger.Error.Printf("%s: %v", se.Op, se.Err)
	} else if err != nil {
		logger.Error.Printf("store: %v", err)
	}
	return err
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// withZeroGroups makes sure every known key is present.
func withZeroGroups[T ~string](counts core.Counts, keys []T) core.Counts {
	if counts == nil {
		counts = core.Counts{}
	}
	for _, k := range keys {
		if _, ok := counts[string(k)]; !ok {
			counts[string(k)] = 0
		}
	}
	return counts
}

func levelList() string {
	names := make([]string, len(core.Levels))
	for i, l := range core.Levels {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}

func statusList(statuses []core.Status) string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func checkLevel(field string, l core.Level) error {
	if !l.Valid() {
		return core.InvalidInput("%s must be one of %s", field, levelList())
	}
	return nil
}

func checkStatus(s core.Status, allowed []core.Status) error {
	if !s.ValidFor(allowed) {
		return core.InvalidInput("Status must be one of %s", statusList(allowed))
	}
	return nil
}
