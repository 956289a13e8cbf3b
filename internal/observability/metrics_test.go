package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/tickets", "POST", 201, 15*time.Millisecond)
	m.RecordRequest("/api/tickets", "POST", 201, 5*time.Millisecond)
	m.RecordError("/api/tickets/:id", "GET", "NOT_FOUND")
	m.RecordDelivery("facebook", true)
	m.RecordDelivery("facebook", false)
	m.RecordIntake("whatsapp", "created")
	m.RecordDroppedEvent()

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/api/tickets|POST|201"])
	assert.Equal(t, int64(20), snap.RequestLatencyMs["/api/tickets|POST"])
	assert.Equal(t, int64(1), snap.Errors["/api/tickets/:id|GET|NOT_FOUND"])
	assert.Equal(t, int64(1), snap.Deliveries["facebook|sent"])
	assert.Equal(t, int64(1), snap.Deliveries["facebook|failed"])
	assert.Equal(t, int64(1), snap.Intake["whatsapp|created"])
	assert.Equal(t, int64(1), snap.DroppedEvents)

	// snapshot is a copy
	snap.Requests["/api/tickets|POST|201"] = 99
	assert.Equal(t, int64(2), m.Snapshot().Requests["/api/tickets|POST|201"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordDelivery("email", true)
	assert.Empty(t, m.Snapshot().Requests)
}
