package eocustom

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Level is the severity of an audit entry.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// ActivitySSO is the activity type of the audit events a strategy opens.
const ActivitySSO = "sso"

// UserInfo is the identity summary recorded on a completed audit event.
type UserInfo struct {
	UID       string `json:"uid"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// EventRecord is the structured record attached to a completed audit event.
type EventRecord struct {
	UserInfo UserInfo `json:"user_info"`
}

// AuditEvent collects the entries of one handshake. Implementations are
// owned by the host application and must be safe for concurrent use, since
// the member detail and custom field lookups may log in parallel.
type AuditEvent interface {
	// ID identifies the event to the host application.
	ID() string

	// Log appends an entry.
	Log(level Level, text string)

	// Fail marks the event failed.
	Fail()

	// Finalize attaches the user record to a successful event.
	Finalize(record EventRecord)
}

// Auditor opens audit events. Begin resolves the host account keyed by the
// callback origin and creates an event of the given activity for it.
type Auditor interface {
	Begin(ctx context.Context, origin, activity string) (AuditEvent, error)
}

// NopAuditor discards every audit entry.
type NopAuditor struct{}

// Begin returns an event that ignores all calls.
func (NopAuditor) Begin(ctx context.Context, origin, activity string) (AuditEvent, error) {
	return nopEvent{}, nil
}

type nopEvent struct{}

func (nopEvent) ID() string           { return "" }
func (nopEvent) Log(Level, string)    {}
func (nopEvent) Fail()                {}
func (nopEvent) Finalize(EventRecord) {}

// LogAuditor writes audit entries to a logrus logger. Entry texts contain
// request URLs and response bodies, so info entries are written at debug
// level and error entries at warn level.
type LogAuditor struct {
	Logger logrus.FieldLogger
}

// NewLogAuditor returns a LogAuditor writing to logger, or to the standard
// logrus logger when logger is nil.
func NewLogAuditor(logger logrus.FieldLogger) *LogAuditor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogAuditor{Logger: logger}
}

// Begin opens an event identified by a random UUID.
func (a *LogAuditor) Begin(ctx context.Context, origin, activity string) (AuditEvent, error) {
	id := uuid.NewString()
	return &logEvent{
		id: id,
		log: a.Logger.WithFields(logrus.Fields{
			"audit_event_id": id,
			"activity":       activity,
			"origin":         origin,
		}),
	}, nil
}

type logEvent struct {
	id     string
	log    logrus.FieldLogger
	mu     sync.Mutex
	failed bool
}

func (e *logEvent) ID() string {
	return e.id
}

func (e *logEvent) Log(level Level, text string) {
	if level == LevelError {
		e.log.Warn(text)
		return
	}
	e.log.Debug(text)
}

func (e *logEvent) Fail() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failed {
		return
	}
	e.failed = true
	e.log.Warn("audit event failed")
}

func (e *logEvent) Finalize(record EventRecord) {
	e.log.WithField("uid", record.UserInfo.UID).Info("audit event completed")
}
