package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"energy_forecast/internal/model"
)

// ErrInvalidPayload wraps every schema or content error of an ingest body.
var ErrInvalidPayload = errors.New("invalid ingest payload")

// Record is one hour of an ingest payload. q_flow_heat is accepted as an
// alias of energy.
type Record struct {
	TS          string   `json:"ts"`
	Energy      *float64 `json:"energy,omitempty"`
	QFlowHeat   *float64 `json:"q_flow_heat,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Payload is the JSON body of POST /ingest.
type Payload struct {
	BuildingID string   `json:"building_id"`
	Records    []Record `json:"records"`
}

const payloadSchema = `{
  "type": "object",
  "required": ["building_id", "records"],
  "properties": {
    "building_id": {"type": "string", "minLength": 1},
    "records": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["ts"],
        "anyOf": [{"required": ["energy"]}, {"required": ["q_flow_heat"]}],
        "properties": {
          "ts": {"type": "string", "minLength": 1},
          "energy": {"type": "number", "minimum": 0},
          "q_flow_heat": {"type": "number", "minimum": 0},
          "temperature": {"type": ["number", "null"]}
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(payloadSchema)

// DecodePayload validates body against the ingest schema and converts it to
// normalized measurements.
func DecodePayload(body []byte) (string, []model.Measurement, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return "", nil, fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(errs, "; "))
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	ms, err := p.Measurements()
	if err != nil {
		return "", nil, err
	}
	return p.BuildingID, ms, nil
}

// Measurements converts the records, rejecting the whole payload on the
// first invalid record.
func (p Payload) Measurements() ([]model.Measurement, error) {
	ms := make([]model.Measurement, 0, len(p.Records))
	for i, r := range p.Records {
		ts, err := ParseTimestamp(r.TS)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrInvalidPayload, i, err)
		}
		energy := r.Energy
		if energy == nil {
			energy = r.QFlowHeat
		}
		if energy == nil {
			return nil, fmt.Errorf("%w: record %d has no energy", ErrInvalidPayload, i)
		}
		m, err := model.Measurement{
			BuildingID:  p.BuildingID,
			Timestamp:   ts,
			Energy:      *energy,
			Temperature: r.Temperature,
		}.Normalize()
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrInvalidPayload, i, err)
		}
		ms = append(ms, m)
	}
	return ms, nil
}
