package memory

import (
	"context"
	"sync"

	"schemacanvas-backend/application/ports"
)

// AuditLog is an in-memory ports.AuditLog.
type AuditLog struct {
	mu      sync.Mutex
	entries []*ports.AuditEntry
}

// NewAuditLog creates an empty in-memory audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Record appends an audit entry.
func (l *AuditLog) Record(ctx context.Context, entry *ports.AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := *entry
	l.entries = append(l.entries, &copied)
	return nil
}

// Entries returns a copy of the recorded entries. Test helper.
func (l *AuditLog) Entries() []*ports.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*ports.AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
