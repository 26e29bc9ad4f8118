package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/trustd/trustd/internal/model"
)

// encodeDetails serializes a structured payload to a JSON text column.
// An empty payload is stored as NULL.
func encodeDetails(details map[string]any) (sql.NullString, error) {
	if len(details) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding details: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// decodeDetails parses a JSON text column back into a structured payload
func decodeDetails(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var details map[string]any
	if err := json.Unmarshal([]byte(raw.String), &details); err != nil {
		return nil, fmt.Errorf("decoding details: %w", err)
	}
	return details, nil
}

// encodeConditions serializes policy conditions to a JSON text column
func encodeConditions(conditions *model.PolicyConditions) (sql.NullString, error) {
	if conditions == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(conditions)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding conditions: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// decodeConditions parses a JSON text column back into policy conditions
func decodeConditions(raw sql.NullString) (*model.PolicyConditions, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var conditions model.PolicyConditions
	if err := json.Unmarshal([]byte(raw.String), &conditions); err != nil {
		return nil, fmt.Errorf("decoding conditions: %w", err)
	}
	return &conditions, nil
}
