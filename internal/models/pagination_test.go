package models

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 25)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)
	assert.Equal(t, 10, p.Offset())

	p = NewPagination(0, 0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageLimit, p.Limit)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.False(t, p.HasPrev)

	assert.Equal(t, MaxPageLimit, NewPagination(1, 10000, 1).Limit)
}

func TestNewPagination_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("hasNext iff page*limit < total", prop.ForAll(
		func(page, limit int, total int64) bool {
			p := NewPagination(page, limit, total)
			return p.HasNext == (int64(p.Page)*int64(p.Limit) < total)
		},
		gen.IntRange(1, 500),
		gen.IntRange(1, MaxPageLimit),
		gen.Int64Range(0, 100000),
	))

	properties.Property("the last page holds at most limit rows", prop.ForAll(
		func(limit int, total int64) bool {
			p := NewPagination(1, limit, total)
			if total == 0 {
				return p.TotalPages == 0
			}
			last := total - int64(p.TotalPages-1)*int64(p.Limit)
			return last > 0 && last <= int64(p.Limit)
		},
		gen.IntRange(1, MaxPageLimit),
		gen.Int64Range(0, 100000),
	))

	properties.TestingRun(t)
}
