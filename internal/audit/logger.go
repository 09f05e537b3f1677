// Package audit records who did what to the catalog and the approval
// ledger. Entries are emitted as a nested "audit" object on a zerolog
// logger so they can be routed separately from request logs.
package audit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type Entry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	ActorID      string            `json:"actor_id"`
	ActorRole    string            `json:"actor_role,omitempty"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	Status       string            `json:"status"`
	Details      map[string]string `json:"details,omitempty"`
}

// Actor identifies who performed an audited action.
type Actor struct {
	ID   string
	Role string
}

// SystemActor is used for actions taken by background jobs.
var SystemActor = Actor{ID: "system", Role: "system"}

type Logger struct {
	output zerolog.Logger
	now    func() time.Time
}

func NewLoggerWithZerolog(logger zerolog.Logger) *Logger {
	return &Logger{
		output: logger.With().Str("component", "audit").Logger(),
		now:    time.Now,
	}
}

func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}
	event := l.output.Info()
	if entry.Status == StatusFailure {
		event = l.output.Warn()
	}
	event.Interface("audit", entry).Msg("audit")
}

// Record logs an action outcome; err decides success or failure and its
// text lands in the details.
func (l *Logger) Record(actor Actor, action, resourceType, resourceID, ipAddress string, details map[string]string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
		merged := make(map[string]string, len(details)+1)
		for k, v := range details {
			merged[k] = v
		}
		merged["error"] = err.Error()
		details = merged
	}
	l.Log(Entry{
		Action:       action,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Status:       status,
		Details:      details,
	})
}

// LogFromRequest records an action taken over HTTP by actor.
func (l *Logger) LogFromRequest(r *http.Request, actor Actor, action, resourceType, resourceID string, details map[string]string, err error) {
	l.Record(actor, action, resourceType, resourceID, ClientIP(r), details, err)
}

// ClientIP is the connection's remote host. Forwarded headers are not
// trusted here; the rate limiter handles proxies.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
