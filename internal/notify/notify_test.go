package notify

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	_, ok := r.Last()
	assert.False(t, ok)

	r.Notify(Notification{Title: "a", Variant: VariantSuccess})
	r.Notify(Notification{Title: "b", Variant: VariantDestructive})

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Title)

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, VariantDestructive, last.Variant)

	r.Reset()
	assert.Empty(t, r.All())
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	n.Notify(Notification{Title: "Deleted", Description: "3 rows", Variant: VariantSuccess})
	assert.Contains(t, buf.String(), `"level":"info"`)
	assert.Contains(t, buf.String(), `"message":"Deleted"`)

	buf.Reset()
	n.Notify(Notification{Title: "Failed", Variant: VariantDestructive})
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestMultiAndFunc(t *testing.T) {
	r := NewRecorder()
	var got []string
	m := Multi{r, nil, Func(func(n Notification) { got = append(got, n.Title) }), Discard}

	m.Notify(Notification{Title: "x"})

	assert.Len(t, r.All(), 1)
	assert.Equal(t, []string{"x"}, got)
}
