package models

import (
	"encoding/json"
	"time"
)

// Record is a document in the opaque store, keyed by collection.
type Record struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
}
