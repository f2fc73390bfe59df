/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package alerts

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// Severity of an alert
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Type classifies an alert
type Type string

const (
	TypeSafetyAlert     Type = "safety_alert"
	TypeDrugInteraction Type = "drug_interaction"
	TypeAdverseReaction Type = "adverse_reaction"
	TypeAllergy         Type = "allergy"
	TypeDosing          Type = "dosing"
	TypeMonitoring      Type = "monitoring"
)

// Alert is one clinical safety alert pushed to the feed
type Alert struct {
	ID             string    `json:"id"`
	Message        string    `json:"message"`
	Severity       Severity  `json:"severity"`
	Timestamp      time.Time `json:"timestamp"`
	PatientID      string    `json:"patient_id,omitempty"`
	Type           Type      `json:"type"`
	DrugName       string    `json:"drug_name,omitempty"`
	RequiresAction bool      `json:"requires_action,omitempty"`
}

// New creates a safety alert with a fresh ID and the current UTC time
func New(message string, severity Severity, patientID string) Alert {
	return Alert{
		ID:        uuid.New().String(),
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
		PatientID: patientID,
		Type:      TypeSafetyAlert,
	}
}

// ValidationError represents a field-level validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const alertSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["message"],
  "properties": {
    "id":              {"type": "string"},
    "message":         {"type": "string", "minLength": 1, "maxLength": 1024},
    "severity":        {"type": "string", "enum": ["low", "medium", "high", "critical"]},
    "timestamp":       {"type": "string", "format": "date-time"},
    "patient_id":      {"type": "string"},
    "type":            {"type": "string", "enum": ["safety_alert", "drug_interaction", "adverse_reaction", "allergy", "dosing", "monitoring"]},
    "drug_name":       {"type": "string"},
    "requires_action": {"type": "boolean"}
  }
}`

var loadSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(alertSchema))
})

// Validate checks raw against the alert schema and returns every violation
func Validate(raw []byte) []ValidationError {
	schema, err := loadSchema()
	if err != nil {
		return []ValidationError{{Field: "(schema)", Message: err.Error()}}
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return []ValidationError{{Field: "(root)", Message: fmt.Sprintf("invalid JSON: %v", err)}}
	}

	var errs []ValidationError
	for _, e := range result.Errors() {
		field := e.Field()
		if e.Type() == "required" {
			if prop, ok := e.Details()["property"].(string); ok {
				field = prop
			}
		}
		errs = append(errs, ValidationError{
			Field:   field,
			Message: e.Description(),
		})
	}
	return errs
}

// Parse validates raw and decodes it, filling in a missing ID, timestamp,
// severity and type.
func Parse(raw []byte) (Alert, []ValidationError) {
	if errs := Validate(raw); len(errs) > 0 {
		return Alert{}, errs
	}

	var a Alert
	if err := json.Unmarshal(raw, &a); err != nil {
		return Alert{}, []ValidationError{{Field: "(root)", Message: err.Error()}}
	}

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	if a.Severity == "" {
		a.Severity = SeverityMedium
	}
	if a.Type == "" {
		a.Type = TypeSafetyAlert
	}
	return a, nil
}
