package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type TrackingID string

func (id TrackingID) Validate() error {
	if strings.TrimSpace(string(id)) == "" {
		return fmt.Errorf("%w: tracking id is required", ErrConfiguration)
	}
	return nil
}

func (id TrackingID) String() string {
	return string(id)
}

type StrategyName string

const (
	StrategyEndpoint StrategyName = "endpoint"
	StrategyForm     StrategyName = "form"
	StrategyStages   StrategyName = "stages"
)

// Observation is the result of one extraction attempt. Only StatusText is persisted.
type Observation struct {
	StatusText   string       `json:"status_text"`
	Evidence     string       `json:"-"`
	StrategyUsed StrategyName `json:"strategy_used"`
	ObservedAt   time.Time    `json:"observed_at"`
}

func NewObservation(status string, strategy StrategyName, evidence string) *Observation {
	return &Observation{
		StatusText:   strings.TrimSpace(status),
		Evidence:     evidence,
		StrategyUsed: strategy,
		ObservedAt:   time.Now(),
	}
}

func (o *Observation) IsValid() bool {
	return o != nil && strings.TrimSpace(o.StatusText) != ""
}

// StatusResponse is the JSON document returned by the busqueda endpoint.
type StatusResponse struct {
	Code    int         `json:"codigo"`
	Message string      `json:"mensaje"`
	Data    *StatusData `json:"data"`
}

type StatusData struct {
	Description string     `json:"descripcion_ultimo_estado"`
	TakenAt     string     `json:"fecha_toma"`
	StageID     FlexString `json:"id_ultimo_estado"`
}

// FlexString accepts both JSON strings and numbers.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id_ultimo_estado: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// StatusText renders the endpoint data the same way on every run so that
// consecutive observations compare equal when nothing changed.
func (d *StatusData) StatusText() string {
	description := strings.TrimSpace(d.Description)
	if description == "" {
		return ""
	}

	parts := []string{fmt.Sprintf("id=%s", d.StageID)}
	if taken := strings.TrimSpace(d.TakenAt); taken != "" {
		parts = append(parts, fmt.Sprintf("fecha=%s", taken))
	}

	return fmt.Sprintf("%s (%s)", description, strings.Join(parts, ", "))
}
