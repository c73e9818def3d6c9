package monitoring

import (
	"time"

	"utrix-hq/quotaflow/pkg/monitoring/storage"
	"utrix-hq/quotaflow/pkg/providers"
)

// AlertType identifies the metric an alert watches.
type AlertType string

// Alert types.
const (
	AlertQuotaExecutions AlertType = "quota_executions"
	AlertQuotaCompute    AlertType = "quota_compute"
	AlertQuotaRequests   AlertType = "quota_requests"
	AlertProjection      AlertType = "projection"
	AlertProviderHealth  AlertType = "provider_health"
)

// Level is an alert severity.
type Level string

// Alert levels.
const (
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

func (l Level) rank() int {
	switch l {
	case LevelWarning:
		return 1
	case LevelCritical:
		return 2
	default:
		return 0
	}
}

// Event describes what happened to an alert in a notification.
type Event string

// Notification events.
const (
	EventRaised    Event = "raised"
	EventEscalated Event = "escalated"
	EventResolved  Event = "resolved"
)

// Alert is a threshold crossing for one provider and metric.
type Alert struct {
	ID         string         `json:"id"`
	Provider   providers.Kind `json:"provider"`
	Type       AlertType      `json:"type"`
	Level      Level          `json:"level"`
	Message    string         `json:"message"`
	Value      float64        `json:"value"`
	Threshold  float64        `json:"threshold"`
	Active     bool           `json:"active"`
	Resolution string         `json:"resolution,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
}

// Notification is sent to notifiers for every alert change.
type Notification struct {
	Event Event `json:"event"`
	Alert Alert `json:"alert"`
}

// CheckResult summarizes one Check run.
type CheckResult struct {
	Raised    int       `json:"raised"`
	Escalated int       `json:"escalated"`
	Resolved  int       `json:"resolved"`
	Active    int       `json:"active"`
	Timestamp time.Time `json:"timestamp"`
}

func (a *Alert) record() *storage.AlertRecord {
	rec := &storage.AlertRecord{
		ID:         a.ID,
		Provider:   string(a.Provider),
		Type:       string(a.Type),
		Level:      string(a.Level),
		Message:    a.Message,
		Value:      a.Value,
		Threshold:  a.Threshold,
		Active:     a.Active,
		Resolution: a.Resolution,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.ResolvedAt != nil {
		rec.ResolvedAt = *a.ResolvedAt
	}
	return rec
}

func alertFromRecord(rec *storage.AlertRecord) *Alert {
	a := &Alert{
		ID:         rec.ID,
		Provider:   providers.Kind(rec.Provider),
		Type:       AlertType(rec.Type),
		Level:      Level(rec.Level),
		Message:    rec.Message,
		Value:      rec.Value,
		Threshold:  rec.Threshold,
		Active:     rec.Active,
		Resolution: rec.Resolution,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
	if !rec.ResolvedAt.IsZero() {
		t := rec.ResolvedAt
		a.ResolvedAt = &t
	}
	return a
}
