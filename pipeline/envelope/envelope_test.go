package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsFreshCorrelationID(t *testing.T) {
	a := New("Course A", "payload-a")
	b := New("Course B", "payload-b")

	require.NotEmpty(t, a.CorrelationID)
	require.NotEmpty(t, b.CorrelationID)
	assert.NotEqual(t, a.CorrelationID, b.CorrelationID)
	assert.Equal(t, "Course A", a.Title)
	assert.Equal(t, "payload-a", a.Payload)
	assert.Zero(t, a.Round)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestWithPayloadPreservesIdentity(t *testing.T) {
	orig := New("Course", "original")
	next := orig.WithPayload("rewritten")

	assert.Equal(t, orig.CorrelationID, next.CorrelationID)
	assert.Equal(t, orig.Title, next.Title)
	assert.Equal(t, orig.Round, next.Round)
	assert.Equal(t, orig.CreatedAt, next.CreatedAt)
	assert.Equal(t, "rewritten", next.Payload)

	// Original is untouched.
	assert.Equal(t, "original", orig.Payload)
}

func TestNextRoundIncrements(t *testing.T) {
	orig := New("Course", "draft")
	next := orig.NextRound("revised")

	assert.Equal(t, orig.CorrelationID, next.CorrelationID)
	assert.Equal(t, orig.Round+1, next.Round)
	assert.Equal(t, "revised", next.Payload)
}

func TestMarshalRoundTrip(t *testing.T) {
	orig := New("Intro to Go", `{"title":"Intro to Go","background":"none"}`)
	orig.Round = 2

	data, err := orig.Marshal()
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, orig.CorrelationID, decoded.CorrelationID)
	assert.Equal(t, orig.Title, decoded.Title)
	assert.Equal(t, orig.Payload, decoded.Payload)
	assert.Equal(t, orig.Round, decoded.Round)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte("not json"))
	require.Error(t, err)
}
