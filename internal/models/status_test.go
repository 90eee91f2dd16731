package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackingIDValidate(t *testing.T) {
	assert.NoError(t, TrackingID("00123456789").Validate())

	err := TrackingID("   ").Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestStatusResponseDecoding(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "numeric stage id with date",
			body:     `{"codigo":0,"data":{"descripcion_ultimo_estado":"EN PRODUCCION","fecha_toma":"2024-05-02","id_ultimo_estado":3}}`,
			expected: "EN PRODUCCION (id=3, fecha=2024-05-02)",
		},
		{
			name:     "string stage id without date",
			body:     `{"codigo":0,"data":{"descripcion_ultimo_estado":"Inicio","id_ultimo_estado":"1"}}`,
			expected: "Inicio (id=1)",
		},
		{
			name:     "empty description",
			body:     `{"codigo":0,"data":{"descripcion_ultimo_estado":"  ","id_ultimo_estado":1}}`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp StatusResponse
			require.NoError(t, json.Unmarshal([]byte(tt.body), &resp))
			require.NotNil(t, resp.Data)
			assert.Equal(t, tt.expected, resp.Data.StatusText())
		})
	}
}

func TestFlexStringRejectsObjects(t *testing.T) {
	var f FlexString
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &f))
}

func TestNewObservationTrims(t *testing.T) {
	obs := NewObservation("  Inicio (id=1)\n", StrategyEndpoint, "{}")
	assert.Equal(t, "Inicio (id=1)", obs.StatusText)
	assert.True(t, obs.IsValid())
	assert.False(t, NewObservation(" \n", StrategyForm, "").IsValid())
}
