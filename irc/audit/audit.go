// Package audit records channel moderation actions (kicks, mode changes,
// topic changes, invitations) to a SQL database through gorm.
//
// The event loop only enqueues; a single background writer owns the
// database. Nothing recorded here is read back into server state.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Event is one moderation action.
type Event struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	At      time.Time `gorm:"index" json:"at"`
	Channel string    `gorm:"size:64;index" json:"channel"`
	Actor   string    `gorm:"size:64" json:"actor"`
	Action  string    `gorm:"size:16" json:"action"`
	Target  string    `gorm:"size:64" json:"target,omitempty"`
	Detail  string    `gorm:"size:512" json:"detail,omitempty"`
}

// TableName implements gorm's tabler.
func (Event) TableName() string { return "audit_events" }

// ErrClosed is returned by operations on a closed Recorder.
var ErrClosed = errors.New("audit recorder closed")

var dialectors = map[string]func(dsn string) gorm.Dialector{
	"sqlite":   sqlite.Open,
	"mysql":    mysql.Open,
	"postgres": postgres.Open,
}

// Recorder buffers events and writes them from one goroutine.
type Recorder struct {
	db      *gorm.DB
	owned   bool
	log     *slog.Logger
	queue   chan Event
	done    chan struct{}
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// Open connects to the database named by driver and dsn and starts a
// Recorder that owns the connection.
func Open(driver, dsn string, buffer int, logger *slog.Logger) (*Recorder, error) {
	dialector, ok := dialectors[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported audit driver %q", driver)
	}
	db, err := gorm.Open(dialector(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if driver == "sqlite" {
		// one connection keeps in-memory databases coherent
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	r, err := New(db, buffer, logger)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	r.owned = true
	return r, nil
}

// New starts a Recorder on an existing connection, migrating the schema.
func New(db *gorm.DB, buffer int, logger *slog.Logger) (*Recorder, error) {
	if err := db.AutoMigrate(&Event{}); err != nil {
		return nil, fmt.Errorf("migrate audit schema: %w", err)
	}
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Recorder{
		db:    db,
		log:   logger,
		queue: make(chan Event, buffer),
		done:  make(chan struct{}),
	}
	go r.writer()
	return r, nil
}

// Record enqueues e without blocking. Events are dropped when the buffer
// is full or the recorder is closed.
func (r *Recorder) Record(e Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- e:
	default:
		n := r.dropped.Add(1)
		r.log.Warn("audit buffer full, dropping event", "action", e.Action, "channel", e.Channel, "dropped", n)
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Collector exports Dropped as ircd_audit_dropped_events_total.
func (r *Recorder) Collector() prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "ircd",
		Subsystem: "audit",
		Name:      "dropped_events_total",
		Help:      "Audit events discarded because the write buffer was full",
	}, func() float64 { return float64(r.Dropped()) })
}

func (r *Recorder) writer() {
	defer close(r.done)
	for e := range r.queue {
		if err := r.db.Create(&e).Error; err != nil {
			r.log.Error("audit write failed", "action", e.Action, "channel", e.Channel, "error", err)
		}
	}
}

// Recent returns up to limit events, newest first, optionally filtered by
// channel.
func (r *Recorder) Recent(ctx context.Context, channel string, limit int) ([]Event, error) {
	r.mu.RLock()
	closed := r.closed && r.owned
	r.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := r.db.WithContext(ctx).Order("id desc").Limit(limit)
	if channel != "" {
		q = q.Where("channel = ?", channel)
	}
	var events []Event
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return events, nil
}

// Close flushes queued events and stops the writer. A database opened by
// Open is closed as well.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done

	if !r.owned {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
