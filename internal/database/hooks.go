package database

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Wirlhawk/skillswap-sub000/internal/metrics"
)

const startTimeKey = "metrics:start_time"

// RegisterMetricsHooks registers gorm callbacks recording statement durations
func RegisterMetricsHooks(db *gorm.DB) error {
	cb := db.Callback()

	hooks := []struct {
		op       string
		register func(before, after func(*gorm.DB)) error
	}{
		{metrics.DBOpCreate, func(before, after func(*gorm.DB)) error {
			if err := cb.Create().Before("gorm:create").Register("metrics:before_create", before); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register("metrics:after_create", after)
		}},
		{metrics.DBOpQuery, func(before, after func(*gorm.DB)) error {
			if err := cb.Query().Before("gorm:query").Register("metrics:before_query", before); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register("metrics:after_query", after)
		}},
		{metrics.DBOpUpdate, func(before, after func(*gorm.DB)) error {
			if err := cb.Update().Before("gorm:update").Register("metrics:before_update", before); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register("metrics:after_update", after)
		}},
		{metrics.DBOpDelete, func(before, after func(*gorm.DB)) error {
			if err := cb.Delete().Before("gorm:delete").Register("metrics:before_delete", before); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register("metrics:after_delete", after)
		}},
		{metrics.DBOpRaw, func(before, after func(*gorm.DB)) error {
			if err := cb.Raw().Before("gorm:raw").Register("metrics:before_raw", before); err != nil {
				return err
			}
			return cb.Raw().After("gorm:raw").Register("metrics:after_raw", after)
		}},
	}

	for _, h := range hooks {
		if err := h.register(markStart, recordDuration(h.op)); err != nil {
			return errors.Wrapf(err, "failed to register %s metrics hook", h.op)
		}
	}
	return nil
}

func markStart(db *gorm.DB) {
	db.InstanceSet(startTimeKey, time.Now())
}

func recordDuration(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		start, ok := db.InstanceGet(startTimeKey)
		if !ok {
			return
		}
		began, ok := start.(time.Time)
		if !ok {
			return
		}

		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		success := db.Error == nil || errors.Is(db.Error, gorm.ErrRecordNotFound)
		metrics.RecordDBQuery(op, table, success, time.Since(began))
	}
}
