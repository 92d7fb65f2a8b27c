package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, 11, LimitWithBuffer(10))
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 10, 18, 9, 30, 0, 123, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	got, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, raw := range []string{"%%%", "bm9waXBl", EncodeCursor(Cursor{}) + "x"} {
		_, err := ParseCursor(raw)
		assert.Error(t, err, raw)
	}
}

func TestTrim(t *testing.T) {
	base := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	key := func(id uuid.UUID) Cursor {
		for i, candidate := range ids {
			if candidate == id {
				return Cursor{CreatedAt: base.Add(time.Duration(i) * time.Second), ID: id}
			}
		}
		return Cursor{}
	}

	page, next := Trim(ids, 2, key)
	require.Len(t, page, 2)
	require.NotEmpty(t, next)
	cursor, err := ParseCursor(next)
	require.NoError(t, err)
	assert.Equal(t, ids[1], cursor.ID)

	page, next = Trim(ids[:2], 2, key)
	assert.Len(t, page, 2)
	assert.Empty(t, next)
}
