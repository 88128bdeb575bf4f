package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Dosada05/tournament-arena/models"
	"github.com/Dosada05/tournament-arena/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu       sync.Mutex
	matches  map[uuid.UUID]*services.PlayableMatch
	statuses []models.MatchStatus
	failWith error
	panicOn  bool
}

func (e *fakeEngine) GetPlayableMatch(_ context.Context, matchID uuid.UUID) (*services.PlayableMatch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pm, ok := e.matches[matchID]
	if !ok {
		return nil, services.ErrMatchNotFound
	}
	cp := *pm
	return &cp, nil
}

func (e *fakeEngine) SetLiveStatus(_ context.Context, matchID uuid.UUID, status models.MatchStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.panicOn {
		panic("storage exploded")
	}
	if e.failWith != nil {
		return e.failWith
	}
	e.statuses = append(e.statuses, status)
	e.matches[matchID].Match.Status = status
	return nil
}

func (e *fakeEngine) recorded() []models.MatchStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.MatchStatus(nil), e.statuses...)
}

type fakeAcceptance struct {
	accepted []uuid.UUID
	declined *models.Tournament
}

func (f *fakeAcceptance) AcceptParticipation(_ context.Context, tournamentID, userID uuid.UUID) (*models.Tournament, error) {
	f.accepted = append(f.accepted, userID)
	return &models.Tournament{ID: tournamentID}, nil
}

func (f *fakeAcceptance) DeclineParticipation(_ context.Context, tournamentID, _ uuid.UUID) (*models.Tournament, error) {
	if f.declined == nil || f.declined.ID != tournamentID {
		return nil, services.ErrTournamentNotFound
	}
	return f.declined, nil
}

type fixture struct {
	registry    *Registry
	dispatcher  *Dispatcher
	engine      *fakeEngine
	tournaments *fakeAcceptance
	matchID     uuid.UUID
	userA       uuid.UUID
	userB       uuid.UUID
	connA       string
	connB       string
	chA         *fakeChannel
	chB         *fakeChannel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		registry:    NewRegistry(discardLogger()),
		tournaments: &fakeAcceptance{},
		matchID:     uuid.New(),
		userA:       uuid.New(),
		userB:       uuid.New(),
		chA:         &fakeChannel{},
		chB:         &fakeChannel{},
	}
	tournamentID := uuid.New()
	p1 := models.Participant{ID: uuid.New(), TournamentID: tournamentID, UserID: f.userA}
	p2 := models.Participant{ID: uuid.New(), TournamentID: tournamentID, UserID: f.userB}
	f.engine = &fakeEngine{matches: map[uuid.UUID]*services.PlayableMatch{
		f.matchID: {
			Match: models.Match{
				ID: f.matchID, TournamentID: tournamentID, Round: 1, Position: 1,
				Participant1ID: &p1.ID, Participant2ID: &p2.ID, Status: models.MatchPending,
			},
			Tournament:   models.Tournament{ID: tournamentID, Size: 2, Status: models.TournamentInProgress},
			Participant1: p1,
			Participant2: p2,
		},
	}}
	f.dispatcher = NewDispatcher(f.registry, f.engine, f.tournaments, discardLogger())
	f.registry.OnDisconnect(f.dispatcher.Disconnect)

	var err error
	f.connA, err = f.registry.Register(f.userA, f.chA)
	require.NoError(t, err)
	f.connB, err = f.registry.Register(f.userB, f.chB)
	require.NoError(t, err)
	return f
}

func (f *fixture) send(connectionID string, msgType string, data any, list []float64) error {
	payload, err := models.EncodeMessage(msgType, data, list)
	if err != nil {
		return err
	}
	return f.dispatcher.Dispatch(context.Background(), connectionID, payload)
}

// start runs initiate + accept and clears both channels.
func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.send(f.connA, models.MsgInitiate, f.matchID.String(), nil))
	require.NoError(t, f.send(f.connB, models.MsgAccept, nil, nil))
	f.chA.reset()
	f.chB.reset()
}

func assertFrame(t *testing.T, m models.Message, msgType, data string) {
	t.Helper()
	assert.Equal(t, msgType, m.Type)
	got, err := m.DataString()
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	mid := f.matchID.String()

	require.NoError(t, f.send(f.connA, models.MsgInitiate, mid, nil))
	invites := f.chB.messages(t)
	require.Len(t, invites, 1)
	assertFrame(t, invites[0], models.MsgInitiate, mid)
	assert.Empty(t, f.chA.messages(t))

	state, ok := f.dispatcher.Session(f.matchID)
	require.True(t, ok)
	assert.Equal(t, models.MatchPending, state.Status)
	assert.True(t, state.Players[0].Accepted, "initiator accepts implicitly")
	assert.False(t, state.Players[1].Accepted)

	f.chB.reset()
	require.NoError(t, f.send(f.connB, models.MsgAccept, nil, nil))
	for _, ch := range []*fakeChannel{f.chA, f.chB} {
		msgs := ch.messages(t)
		require.Len(t, msgs, 2)
		assertFrame(t, msgs[0], models.MsgAccept, f.userB.String())
		assertFrame(t, msgs[1], models.MsgStart, mid)
		ch.reset()
	}
	assert.Equal(t, []models.MatchStatus{models.MatchInProgress}, f.engine.recorded())

	move := []byte(`{"t":"m","l":[0.25,0.5]}`)
	require.NoError(t, f.dispatcher.Dispatch(context.Background(), f.connA, move))
	assert.Equal(t, [][]byte{move}, f.chB.raw(), "moves are relayed verbatim to the opponent")
	assert.Empty(t, f.chA.raw())
	state, _ = f.dispatcher.Session(f.matchID)
	assert.Equal(t, []float64{0.25, 0.5}, state.Players[0].Paddle)
	f.chB.reset()

	require.NoError(t, f.send(f.connA, models.MsgPause, nil, nil))
	for _, ch := range []*fakeChannel{f.chA, f.chB} {
		msgs := ch.messages(t)
		require.Len(t, msgs, 1)
		assertFrame(t, msgs[0], models.MsgPause, f.userA.String())
		ch.reset()
	}
	state, _ = f.dispatcher.Session(f.matchID)
	assert.Equal(t, models.MatchPaused, state.Status)
	assert.False(t, state.Players[0].Accepted)
	assert.False(t, state.Players[1].Accepted)

	assert.ErrorIs(t, f.send(f.connA, models.MsgPause, nil, nil), services.ErrInvalidTransition)

	require.NoError(t, f.send(f.connA, models.MsgAccept, nil, nil))
	require.NoError(t, f.send(f.connB, models.MsgAccept, nil, nil))
	msgs := f.chA.messages(t)
	require.Len(t, msgs, 3)
	assertFrame(t, msgs[2], models.MsgStart, mid)
	f.chA.reset()
	f.chB.reset()

	require.NoError(t, f.send(f.connB, models.MsgQuit, nil, nil))
	for _, ch := range []*fakeChannel{f.chA, f.chB} {
		msgs := ch.messages(t)
		require.Len(t, msgs, 1)
		assertFrame(t, msgs[0], models.MsgQuit, f.userB.String())
	}
	assert.Equal(t, []models.MatchStatus{
		models.MatchInProgress, models.MatchPaused, models.MatchInProgress, models.MatchPaused,
	}, f.engine.recorded())

	_, ok = f.dispatcher.Session(f.matchID)
	assert.False(t, ok)
	assert.ErrorIs(t, f.send(f.connA, models.MsgMove, nil, []float64{1}), services.ErrMatchNotFound)
	assert.ErrorIs(t, f.send(f.connA, models.MsgPause, nil, nil), services.ErrMatchNotFound)
	assert.ErrorIs(t, f.send(f.connA, models.MsgQuit, nil, nil), services.ErrMatchNotFound)
}

func TestDeclineInviteEndsSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.send(f.connA, models.MsgInitiate, f.matchID.String(), nil))
	f.chB.reset()

	require.NoError(t, f.send(f.connB, models.MsgDecline, nil, nil))
	for _, ch := range []*fakeChannel{f.chA, f.chB} {
		msgs := ch.messages(t)
		require.Len(t, msgs, 1)
		assertFrame(t, msgs[0], models.MsgDecline, f.userB.String())
	}
	assert.Empty(t, f.engine.recorded(), "a match that never started is not persisted")
	assert.ErrorIs(t, f.send(f.connA, models.MsgMove, nil, []float64{1}), services.ErrMatchNotFound)

	require.NoError(t, f.send(f.connA, models.MsgInitiate, f.matchID.String(), nil), "match can be initiated again")
}

func TestInitiateRejections(t *testing.T) {
	f := newFixture(t)
	mid := f.matchID.String()

	assert.ErrorIs(t, f.send(f.connA, models.MsgInitiate, uuid.NewString(), nil), services.ErrMatchNotFound)
	assert.ErrorIs(t, f.send(f.connA, models.MsgInitiate, "not-an-id", nil), ErrMalformedMessage)
	assert.ErrorIs(t, f.send(f.connA, models.MsgInitiate, nil, nil), ErrMalformedMessage)

	outsider, err := f.registry.Register(uuid.New(), &fakeChannel{})
	require.NoError(t, err)
	assert.ErrorIs(t, f.send(outsider, models.MsgInitiate, mid, nil), services.ErrNotMatchParticipant)

	f.engine.matches[f.matchID].Tournament.Status = models.TournamentPending
	assert.ErrorIs(t, f.send(f.connA, models.MsgInitiate, mid, nil), services.ErrMatchNotPlayable)
	f.engine.matches[f.matchID].Tournament.Status = models.TournamentInProgress

	f.engine.matches[f.matchID].Match.Status = models.MatchFinished
	assert.ErrorIs(t, f.send(f.connA, models.MsgInitiate, mid, nil), services.ErrMatchNotPlayable)
	f.engine.matches[f.matchID].Match.Status = models.MatchPending

	require.NoError(t, f.send(f.connA, models.MsgInitiate, mid, nil))
	assert.ErrorIs(t, f.send(f.connA, models.MsgInitiate, mid, nil), ErrSessionConflict)
	assert.ErrorIs(t, f.send(f.connB, models.MsgInitiate, mid, nil), ErrSessionConflict)

	_, ok := f.dispatcher.Session(f.matchID)
	assert.True(t, ok, "rejected messages leave the session intact")
}

func TestInitiateRequiresOnlineOpponent(t *testing.T) {
	f := newFixture(t)
	f.registry.Unregister(f.connB)

	err := f.send(f.connA, models.MsgInitiate, f.matchID.String(), nil)
	assert.ErrorIs(t, err, services.ErrUserOffline)
	_, ok := f.dispatcher.Session(f.matchID)
	assert.False(t, ok)
}

// droppingConnections unregisters a connection right after the opponent lookup.
type droppingConnections struct {
	*Registry
	afterLookup func()
}

func (c *droppingConnections) ConnectionOf(userID uuid.UUID) (string, error) {
	id, err := c.Registry.ConnectionOf(userID)
	if c.afterLookup != nil {
		c.afterLookup()
		c.afterLookup = nil
	}
	return id, err
}

func TestInitiateOpponentLeavesDuringSetup(t *testing.T) {
	f := newFixture(t)
	conns := &droppingConnections{Registry: f.registry}
	d := NewDispatcher(conns, f.engine, f.tournaments, discardLogger())
	f.registry.OnDisconnect(d.Disconnect)
	mid := f.matchID.String()

	conns.afterLookup = func() { f.registry.Unregister(f.connB) }
	payload, err := models.EncodeMessage(models.MsgInitiate, mid, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Dispatch(context.Background(), f.connA, payload), services.ErrUserOffline)
	_, ok := d.Session(f.matchID)
	assert.False(t, ok, "no session is bound to a closed connection")

	chB := &fakeChannel{}
	connB, err := f.registry.Register(f.userB, chB)
	require.NoError(t, err)
	payload, err = models.EncodeMessage(models.MsgInitiate, mid, nil)
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(context.Background(), connB, payload))

	state, ok := d.Session(f.matchID)
	require.True(t, ok)
	assert.Equal(t, connB, state.Players[1].ConnectionID)
	assert.True(t, state.Players[1].Accepted)
	invites := f.chA.messages(t)
	require.Len(t, invites, 1)
	assertFrame(t, invites[0], models.MsgInitiate, mid)
}

func TestProtocolErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.dispatcher.Dispatch(ctx, f.connA, []byte("{")), ErrMalformedMessage)
	assert.ErrorIs(t, f.send(f.connA, "x", nil, nil), ErrUnknownMessageType)
	assert.ErrorIs(t, f.send(f.connA, models.MsgStart, nil, nil), ErrUnknownMessageType)
	assert.ErrorIs(t, f.send("ghost", models.MsgQuit, nil, nil), ErrConnectionNotFound)
}

func TestUnexpectedFailureAbortsSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.send(f.connA, models.MsgInitiate, f.matchID.String(), nil))
	f.chB.reset()

	f.engine.failWith = errors.New("connection reset by peer")
	err := f.send(f.connB, models.MsgAccept, nil, nil)
	require.Error(t, err)

	for _, ch := range []*fakeChannel{f.chA, f.chB} {
		msgs := ch.messages(t)
		require.Len(t, msgs, 1, "the staged acknowledgement is never sent")
		assertFrame(t, msgs[0], models.MsgQuit, "aborted")
	}
	_, ok := f.dispatcher.Session(f.matchID)
	assert.False(t, ok)
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.send(f.connA, models.MsgInitiate, f.matchID.String(), nil))
	f.chB.reset()

	f.engine.panicOn = true
	err := f.send(f.connB, models.MsgAccept, nil, nil)
	assert.ErrorIs(t, err, errHandlerPanic)

	msgs := f.chA.messages(t)
	require.Len(t, msgs, 1)
	assertFrame(t, msgs[0], models.MsgQuit, "aborted")
	_, ok := f.dispatcher.Session(f.matchID)
	assert.False(t, ok)
}

func TestDisconnectNotifiesOpponent(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.registry.Unregister(f.connA)

	msgs := f.chB.messages(t)
	require.Len(t, msgs, 1)
	assertFrame(t, msgs[0], models.MsgQuit, f.userA.String())
	assert.Empty(t, f.chA.raw())
	assert.Equal(t, models.MatchPaused, f.engine.recorded()[len(f.engine.recorded())-1])

	_, ok := f.dispatcher.Session(f.matchID)
	assert.False(t, ok)
	assert.ErrorIs(t, f.send(f.connB, models.MsgMove, nil, []float64{1}), services.ErrMatchNotFound)
}

func TestSyncScore(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.dispatcher.SyncScore(f.matchID, 2, 1, false)
	state, ok := f.dispatcher.Session(f.matchID)
	require.True(t, ok)
	assert.Equal(t, 2, state.Players[0].Score)
	assert.Equal(t, 1, state.Players[1].Score)
	assert.Empty(t, f.chA.raw())

	f.dispatcher.SyncScore(f.matchID, 1, 1, false)
	state, _ = f.dispatcher.Session(f.matchID)
	assert.Equal(t, 2, state.Players[0].Score, "stale score is skipped")
	assert.Equal(t, 1, state.Players[1].Score)

	f.dispatcher.SyncScore(f.matchID, 3, 1, true)
	for _, ch := range []*fakeChannel{f.chA, f.chB} {
		msgs := ch.messages(t)
		require.Len(t, msgs, 1)
		assertFrame(t, msgs[0], models.MsgQuit, "finished")
		assert.Equal(t, []float64{3, 1}, msgs[0].List)
	}
	_, ok = f.dispatcher.Session(f.matchID)
	assert.False(t, ok)

	f.dispatcher.SyncScore(uuid.New(), 1, 0, true)
}

func TestTournamentLevelAcceptAndDecline(t *testing.T) {
	f := newFixture(t)
	tid := uuid.New()

	require.NoError(t, f.send(f.connA, models.MsgAccept, tid.String(), nil))
	assert.Equal(t, []uuid.UUID{f.userA}, f.tournaments.accepted)
	msgs := f.chA.messages(t)
	require.Len(t, msgs, 1)
	assertFrame(t, msgs[0], models.MsgAccept, tid.String())
	f.chA.reset()

	f.tournaments.declined = &models.Tournament{ID: tid, Participants: []models.Participant{
		{UserID: f.userA}, {UserID: f.userB}, {UserID: uuid.New()},
	}}
	require.NoError(t, f.send(f.connB, models.MsgDecline, tid.String(), nil))
	for _, ch := range []*fakeChannel{f.chA, f.chB} {
		msgs := ch.messages(t)
		require.Len(t, msgs, 1)
		assertFrame(t, msgs[0], models.MsgDecline, tid.String())
	}

	assert.ErrorIs(t, f.send(f.connB, models.MsgDecline, uuid.NewString(), nil), services.ErrTournamentNotFound)
}
