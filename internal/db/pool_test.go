package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(pgx.ErrNoRows))
	assert.True(t, IsNoRows(fmt.Errorf("get deal: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(nil))
	assert.False(t, IsNoRows(errors.New("boom")))
}
