package store

import (
	"encoding/json"
	"fmt"

	"github.com/amishk599/jobradar/internal/model"
)

// encodedRecord holds the JSON columns of a record. Nil means NULL.
type encodedRecord struct {
	salary []byte
	score  []byte
}

func encodeRecord(rec model.JobRecord) (encodedRecord, error) {
	var row encodedRecord
	var err error
	if rec.Salary != nil {
		if row.salary, err = json.Marshal(rec.Salary); err != nil {
			return row, fmt.Errorf("encoding salary of %s: %w", rec.Key, err)
		}
	}
	if rec.Score != nil {
		if row.score, err = json.Marshal(rec.Score); err != nil {
			return row, fmt.Errorf("encoding score of %s: %w", rec.Key, err)
		}
	}
	return row, nil
}

// nullableJSON keeps absent JSON columns NULL instead of the string "null".
func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
