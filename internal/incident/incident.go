// Package incident archives ledger anomalies for manual investigation.
package incident

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// KindReconciliation marks a payment confirmation with no matching pending order.
const KindReconciliation = "reconciliation"

// Incident is a single archived anomaly.
type Incident struct {
	ID         uuid.UUID         `json:"id"`
	Kind       string            `json:"kind"`
	SessionRef string            `json:"gatewaySessionRef"`
	Reason     string            `json:"reason"`
	Details    map[string]string `json:"details,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// NewReconciliation creates a reconciliation incident for sessionRef.
func NewReconciliation(sessionRef, reason string) *Incident {
	return &Incident{
		ID:         uuid.New(),
		Kind:       KindReconciliation,
		SessionRef: sessionRef,
		Reason:     reason,
		Details:    map[string]string{},
		OccurredAt: time.Now().UTC(),
	}
}

// Recorder persists incidents.
type Recorder interface {
	Record(ctx context.Context, inc *Incident) error
}

// objectName returns the relative path under which an incident is stored,
// partitioned by day.
func objectName(inc *Incident) string {
	return fmt.Sprintf("%s/%s-%s.json.gz", inc.OccurredAt.Format("2006/01/02"), inc.Kind, inc.ID)
}

func encode(inc *Incident) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(inc); err != nil {
		gz.Close()
		return nil, fmt.Errorf("failed to encode incident: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress incident: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*Incident, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var inc Incident
	if err := json.NewDecoder(gz).Decode(&inc); err != nil {
		return nil, fmt.Errorf("failed to decode incident: %w", err)
	}
	return &inc, nil
}
