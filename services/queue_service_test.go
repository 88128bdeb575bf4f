package services

import (
	"context"
	"sync"
	"testing"

	"github.com/Dosada05/tournament-arena/locks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresence struct {
	mu       sync.Mutex
	online   map[uuid.UUID]bool
	received map[uuid.UUID][]string
}

func newFakePresence(users ...uuid.UUID) *fakePresence {
	p := &fakePresence{online: map[uuid.UUID]bool{}, received: map[uuid.UUID][]string{}}
	for _, u := range users {
		p.online[u] = true
	}
	return p
}

func (p *fakePresence) IsOnline(userID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}

func (p *fakePresence) NotifyUser(userID uuid.UUID, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received[userID] = append(p.received[userID], string(payload))
	return nil
}

func newQueue(e *env, presence Presence) QueueService {
	return NewQueueService(locks.NewService(), presence, e.tournaments, e.settingsRepo, e.logger)
}

func TestQueueJoinCreatesTournament(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	users := e.users(t, 2, 3)
	presence := newFakePresence(users...)
	queue := newQueue(e, presence)

	ticket, err := queue.Join(ctx, users[0], 2)
	require.NoError(t, err)
	assert.Equal(t, 1, ticket.Position)
	assert.Nil(t, ticket.Tournament)

	pos, ok := queue.Position(users[0])
	require.True(t, ok)
	assert.Equal(t, 2, pos.Size)

	ticket, err = queue.Join(ctx, users[1], 2)
	require.NoError(t, err)
	require.NotNil(t, ticket.Tournament)
	assert.Equal(t, users[0], ticket.Tournament.CreatorID)

	_, ok = queue.Position(users[0])
	assert.False(t, ok)
	_, ok = queue.Position(users[1])
	assert.False(t, ok)

	want := `{"t":"a","d":"` + ticket.Tournament.ID.String() + `"}`
	for _, u := range users {
		require.Len(t, presence.received[u], 1)
		assert.JSONEq(t, want, presence.received[u][0])
	}
}

func TestQueueJoinRejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	users := e.users(t, 2, 3)
	noSettings := uuid.New()
	presence := newFakePresence(users[0], noSettings)
	queue := newQueue(e, presence)

	_, err := queue.Join(ctx, users[1], 2)
	assert.ErrorIs(t, err, ErrUserOffline)

	_, err = queue.Join(ctx, users[0], 3)
	assert.ErrorIs(t, err, ErrInvalidBracketSize)

	_, err = queue.Join(ctx, noSettings, 2)
	assert.ErrorIs(t, err, ErrSettingsNotFound)

	_, err = queue.Join(ctx, users[0], 4)
	require.NoError(t, err)
	_, err = queue.Join(ctx, users[0], 2)
	assert.ErrorIs(t, err, ErrAlreadyQueued)
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, queue.Leave(ctx, users[0]))
	require.NoError(t, queue.Leave(ctx, users[0]))
	_, ok := queue.Position(users[0])
	assert.False(t, ok)
}

func TestQueueConcurrentJoinsCreateOneTournamentPerGroup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	users := e.users(t, 8, 3)
	queue := newQueue(e, newFakePresence(users...))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created []uuid.UUID
	)
	for _, u := range users {
		wg.Add(1)
		go func(u uuid.UUID) {
			defer wg.Done()
			ticket, err := queue.Join(ctx, u, 4)
			if !assert.NoError(t, err) {
				return
			}
			if ticket.Tournament != nil {
				mu.Lock()
				created = append(created, ticket.Tournament.ID)
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()

	assert.Len(t, created, 2)
	for _, u := range users {
		list, err := e.tournaments.ListUserTournaments(ctx, u)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	}
}
