package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMessage(t *testing.T) {
	b, err := EncodeMessage(MsgQuit, "finished", []float64{3, 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":"q","d":"finished","l":[3,1]}`, string(b))

	b, err = EncodeMessage(MsgStart, nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":"s"}`, string(b))
}

func TestMessageDataString(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"t":"i","d":"abc"}`), &m))
	s, err := m.DataString()
	require.NoError(t, err)
	assert.Equal(t, "abc", s)

	require.NoError(t, json.Unmarshal([]byte(`{"t":"a","d":42}`), &m))
	s, err = m.DataString()
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	require.NoError(t, json.Unmarshal([]byte(`{"t":"a","d":[1]}`), &m))
	_, err = m.DataString()
	assert.Error(t, err)

	_, err = Message{Type: "p"}.DataString()
	assert.Error(t, err)
}

func TestMatchWinnerAndLoser(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	m := Match{Participant1ID: &a, Participant2ID: &b, Score1: 1, Score2: 3, Status: MatchFinished}
	require.NotNil(t, m.Winner())
	assert.Equal(t, b, *m.Winner())
	assert.Equal(t, a, *m.Loser())
	assert.Equal(t, 2, m.Slot(b))

	m.Status = MatchInProgress
	assert.Nil(t, m.Winner())
	assert.Nil(t, m.Loser())
}

func TestTournamentRounds(t *testing.T) {
	assert.Equal(t, 1, Tournament{Size: 2}.Rounds())
	assert.Equal(t, 2, Tournament{Size: 4}.Rounds())
	assert.True(t, Tournament{Size: 4}.IsFinalRound(2))
	assert.False(t, Tournament{Size: 4}.IsFinalRound(1))
}
