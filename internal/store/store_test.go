package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaIsIdempotent(t *testing.T) {
	for _, stmt := range schema {
		assert.Contains(t, stmt, "IF NOT EXISTS")
	}
}

func TestSchemaCarriesDayUniqueness(t *testing.T) {
	joined := strings.Join(schema, "\n")
	assert.Contains(t, joined, "UNIQUE (person_id, day)")
	assert.Contains(t, joined, "people_badge_id_key")
	assert.Contains(t, joined, "people_email_key")
}

func TestNilHandlesAreUnhealthy(t *testing.T) {
	var db *DB
	var r *Redis
	assert.False(t, db.Healthy(context.Background()))
	assert.False(t, r.Healthy(context.Background()))
	assert.NoError(t, db.Close())
	assert.NoError(t, r.Close())
}
