package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/tournament-arena/models"
	"github.com/Dosada05/tournament-arena/services"
	"github.com/google/uuid"
)

var (
	ErrMalformedMessage   = fmt.Errorf("%w: malformed message", services.ErrValidationFailed)
	ErrUnknownMessageType = fmt.Errorf("%w: unknown message type", services.ErrValidationFailed)
	ErrSessionConflict    = fmt.Errorf("%w: a player is already in a live match", services.ErrConflict)
	errHandlerPanic       = errors.New("message handler panicked")
)

const (
	reasonAborted  = "aborted"
	reasonFinished = "finished"
)

// MatchEngine is the part of the match service the dispatcher drives.
type MatchEngine interface {
	GetPlayableMatch(ctx context.Context, matchID uuid.UUID) (*services.PlayableMatch, error)
	SetLiveStatus(ctx context.Context, matchID uuid.UUID, status models.MatchStatus) error
}

// TournamentAcceptance handles accept/decline sent outside a live match.
type TournamentAcceptance interface {
	AcceptParticipation(ctx context.Context, tournamentID, userID uuid.UUID) (*models.Tournament, error)
	DeclineParticipation(ctx context.Context, tournamentID, userID uuid.UUID) (*models.Tournament, error)
}

// Connections is the registry as seen by the dispatcher.
type Connections interface {
	UserOf(connectionID string) (uuid.UUID, error)
	ConnectionOf(userID uuid.UUID) (string, error)
	Send(connectionID string, payload []byte) error
	NotifyUser(userID uuid.UUID, payload []byte) error
}

type outgoing struct {
	connectionID string
	payload      []byte
}

// Dispatcher routes protocol messages to live match sessions.
type Dispatcher struct {
	mu      sync.RWMutex
	byConn  map[string]*Session
	byMatch map[uuid.UUID]*Session

	conns       Connections
	matches     MatchEngine
	tournaments TournamentAcceptance
	opTimeout   time.Duration
	logger      *slog.Logger
}

func NewDispatcher(conns Connections, matches MatchEngine, tournaments TournamentAcceptance, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		byConn:      make(map[string]*Session),
		byMatch:     make(map[uuid.UUID]*Session),
		conns:       conns,
		matches:     matches,
		tournaments: tournaments,
		opTimeout:   5 * time.Second,
		logger:      logger,
	}
}

// Dispatch handles one inbound frame. Failures never propagate to the
// connection: expected ones are logged, anything else aborts the sender's
// session and tells both players.
func (d *Dispatcher) Dispatch(ctx context.Context, connectionID string, payload []byte) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.opTimeout)
	defer cancel()

	var msg models.Message
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", errHandlerPanic, p)
		}
		if err == nil {
			return
		}
		log := d.logger.With(slog.String("connection_id", connectionID), slog.String("type", msg.Type), slog.Any("error", err))
		if isProtocolError(err) {
			log.Warn("protocol message rejected")
			return
		}
		log.Error("protocol handler failed, aborting session")
		d.abort(connectionID)
	}()

	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	userID, err := d.conns.UserOf(connectionID)
	if err != nil {
		return err
	}

	switch msg.Type {
	case models.MsgInitiate:
		return d.initiate(ctx, connectionID, userID, msg)
	case models.MsgAccept:
		return d.accept(ctx, connectionID, userID, msg)
	case models.MsgDecline:
		return d.decline(ctx, connectionID, userID, msg)
	case models.MsgPause:
		return d.pause(ctx, connectionID, userID)
	case models.MsgMove:
		return d.move(connectionID, msg, payload)
	case models.MsgQuit:
		return d.quit(ctx, connectionID, userID)
	}
	return fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
}

// isProtocolError reports failures caused by the client rather than the server.
func isProtocolError(err error) bool {
	return errors.Is(err, services.ErrNotFound) ||
		errors.Is(err, services.ErrConflict) ||
		errors.Is(err, services.ErrValidationFailed) ||
		errors.Is(err, services.ErrForbiddenOperation)
}

func (d *Dispatcher) sessionOf(connectionID string) *Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byConn[connectionID]
}

// lockSession returns the caller's session locked, or ErrMatchNotFound.
func (d *Dispatcher) lockSession(connectionID string) (*Session, error) {
	s := d.sessionOf(connectionID)
	if s == nil {
		return nil, services.ErrMatchNotFound
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, services.ErrMatchNotFound
	}
	return s, nil
}

func (d *Dispatcher) initiate(ctx context.Context, connectionID string, userID uuid.UUID, msg models.Message) error {
	matchID, err := parseID(msg)
	if err != nil {
		return err
	}
	if d.sessionOf(connectionID) != nil {
		return ErrSessionConflict
	}

	pm, err := d.matches.GetPlayableMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if pm.Tournament.Status != models.TournamentInProgress || pm.Match.Status.IsTerminal() {
		return services.ErrMatchNotPlayable
	}
	opponentID, ok := pm.Opponent(userID)
	if !ok {
		return services.ErrNotMatchParticipant
	}
	opponentConn, err := d.conns.ConnectionOf(opponentID)
	if err != nil {
		return services.ErrUserOffline
	}

	state := SessionState{
		MatchID:      matchID,
		TournamentID: pm.Match.TournamentID,
		Status:       models.MatchPending,
		Players: [2]Player{
			{UserID: pm.Participant1.UserID, ParticipantID: pm.Participant1.ID, Score: pm.Match.Score1},
			{UserID: pm.Participant2.UserID, ParticipantID: pm.Participant2.ID, Score: pm.Match.Score2},
		},
	}
	for i := range state.Players {
		if state.Players[i].UserID == userID {
			state.Players[i].ConnectionID = connectionID
			state.Players[i].Accepted = true
		} else {
			state.Players[i].ConnectionID = opponentConn
		}
	}

	d.mu.Lock()
	if d.byConn[connectionID] != nil || d.byConn[opponentConn] != nil || d.byMatch[matchID] != nil {
		d.mu.Unlock()
		return ErrSessionConflict
	}
	// Реестр снимает соединение до вызова хуков отключения. Если одно из них
	// уже снято, Disconnect сессию не найдёт, поэтому проверяем здесь.
	_, errSelf := d.conns.UserOf(connectionID)
	_, errOpp := d.conns.UserOf(opponentConn)
	if errSelf != nil || errOpp != nil {
		d.mu.Unlock()
		return services.ErrUserOffline
	}
	s := &Session{state: state}
	d.byConn[connectionID] = s
	d.byConn[opponentConn] = s
	d.byMatch[matchID] = s
	d.mu.Unlock()

	d.logger.Info("match session created",
		slog.String("match_id", matchID.String()),
		slog.String("initiator", userID.String()))
	d.send(outgoing{opponentConn, encode(models.MsgInitiate, matchID.String(), nil)})
	return nil
}

func (d *Dispatcher) accept(ctx context.Context, connectionID string, userID uuid.UUID, msg models.Message) error {
	if d.sessionOf(connectionID) == nil {
		return d.acceptTournament(ctx, connectionID, userID, msg)
	}
	s, err := d.lockSession(connectionID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if s.state.Status != models.MatchPending && s.state.Status != models.MatchPaused {
		return services.ErrInvalidTransition
	}
	next := s.state.clone()
	next.Players[next.slotOf(connectionID)].Accepted = true
	ack := encode(models.MsgAccept, userID.String(), nil)
	out := broadcast(next, ack)

	if next.allAccepted() {
		if err := d.matches.SetLiveStatus(ctx, next.MatchID, models.MatchInProgress); err != nil {
			return err
		}
		next.Status = models.MatchInProgress
		out = append(out, broadcast(next, encode(models.MsgStart, next.MatchID.String(), nil))...)
	}

	s.state = next
	d.send(out...)
	return nil
}

func (d *Dispatcher) acceptTournament(ctx context.Context, connectionID string, userID uuid.UUID, msg models.Message) error {
	tournamentID, err := parseID(msg)
	if err != nil {
		return err
	}
	if _, err := d.tournaments.AcceptParticipation(ctx, tournamentID, userID); err != nil {
		return err
	}
	d.send(outgoing{connectionID, encode(models.MsgAccept, tournamentID.String(), nil)})
	return nil
}

func (d *Dispatcher) decline(ctx context.Context, connectionID string, userID uuid.UUID, msg models.Message) error {
	if d.sessionOf(connectionID) == nil {
		return d.declineTournament(ctx, userID, msg)
	}
	return d.end(ctx, connectionID, encode(models.MsgDecline, userID.String(), nil), false)
}

func (d *Dispatcher) declineTournament(ctx context.Context, userID uuid.UUID, msg models.Message) error {
	tournamentID, err := parseID(msg)
	if err != nil {
		return err
	}
	tournament, err := d.tournaments.DeclineParticipation(ctx, tournamentID, userID)
	if err != nil {
		return err
	}
	notice := encode(models.MsgDecline, tournamentID.String(), nil)
	for _, p := range tournament.Participants {
		if err := d.conns.NotifyUser(p.UserID, notice); err != nil && !errors.Is(err, ErrConnectionNotFound) {
			d.logger.Warn("failed to notify participant", slog.String("user_id", p.UserID.String()), slog.Any("error", err))
		}
	}
	return nil
}

func (d *Dispatcher) pause(ctx context.Context, connectionID string, userID uuid.UUID) error {
	s, err := d.lockSession(connectionID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if s.state.Status != models.MatchInProgress {
		return services.ErrInvalidTransition
	}
	if err := d.matches.SetLiveStatus(ctx, s.state.MatchID, models.MatchPaused); err != nil {
		return err
	}
	next := s.state.clone()
	next.Status = models.MatchPaused
	for i := range next.Players {
		next.Players[i].Accepted = false
	}

	s.state = next
	d.send(broadcast(next, encode(models.MsgPause, userID.String(), nil))...)
	return nil
}

func (d *Dispatcher) move(connectionID string, msg models.Message, raw []byte) error {
	s, err := d.lockSession(connectionID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if s.state.Status != models.MatchInProgress && s.state.Status != models.MatchPaused {
		return services.ErrInvalidTransition
	}
	slot := s.state.slotOf(connectionID)
	s.state.Players[slot].Paddle = msg.List
	d.send(outgoing{s.state.Players[1-slot].ConnectionID, raw})
	return nil
}

func (d *Dispatcher) quit(ctx context.Context, connectionID string, userID uuid.UUID) error {
	return d.end(ctx, connectionID, encode(models.MsgQuit, userID.String(), nil), false)
}

// Disconnect tears down the session of a closed connection and tells the opponent.
func (d *Dispatcher) Disconnect(connectionID string, userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opTimeout)
	defer cancel()
	err := d.end(ctx, connectionID, encode(models.MsgQuit, userID.String(), nil), true)
	if err != nil && !errors.Is(err, services.ErrMatchNotFound) {
		d.logger.Error("failed to end session of closed connection", slog.String("connection_id", connectionID), slog.Any("error", err))
	}
}

// end removes the session unconditionally. A running match is persisted as
// paused; failing to do so is logged, the session goes away regardless.
func (d *Dispatcher) end(ctx context.Context, connectionID string, notice []byte, senderGone bool) error {
	s, err := d.lockSession(connectionID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	state := s.state
	d.teardown(s)
	d.persistPaused(ctx, state)

	out := broadcast(state, notice)
	if senderGone {
		out = out[:0]
		for _, c := range state.connections() {
			if c != connectionID {
				out = append(out, outgoing{c, notice})
			}
		}
	}
	d.send(out...)
	d.logger.Info("match session ended", slog.String("match_id", state.MatchID.String()))
	return nil
}

// SyncScore mirrors the scores recorded for a match. A finished match closes
// its session with the final score. Scores only grow, so an update whose
// total is below the mirrored one is stale and skipped.
func (d *Dispatcher) SyncScore(matchID uuid.UUID, score1, score2 int, finished bool) {
	d.mu.RLock()
	s := d.byMatch[matchID]
	d.mu.RUnlock()
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if !finished && score1+score2 < s.state.Players[0].Score+s.state.Players[1].Score {
		return
	}
	s.state.Players[0].Score = score1
	s.state.Players[1].Score = score2
	if !finished {
		return
	}

	state := s.state
	d.teardown(s)
	d.send(broadcast(state, encode(models.MsgQuit, reasonFinished, []float64{float64(score1), float64(score2)}))...)
	d.logger.Info("match session finished", slog.String("match_id", matchID.String()))
}

func (d *Dispatcher) abort(connectionID string) {
	s := d.sessionOf(connectionID)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	state := s.state
	d.teardown(s)

	ctx, cancel := context.WithTimeout(context.Background(), d.opTimeout)
	defer cancel()
	d.persistPaused(ctx, state)
	d.send(broadcast(state, encode(models.MsgQuit, reasonAborted, nil))...)
}

// teardown unlinks s from the table. s.mu must be held.
func (d *Dispatcher) teardown(s *Session) {
	s.closed = true
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range s.state.connections() {
		if d.byConn[c] == s {
			delete(d.byConn, c)
		}
	}
	if d.byMatch[s.state.MatchID] == s {
		delete(d.byMatch, s.state.MatchID)
	}
}

func (d *Dispatcher) persistPaused(ctx context.Context, state SessionState) {
	if state.Status != models.MatchInProgress {
		return
	}
	if err := d.matches.SetLiveStatus(ctx, state.MatchID, models.MatchPaused); err != nil {
		d.logger.Error("failed to persist paused match",
			slog.String("match_id", state.MatchID.String()), slog.Any("error", err))
	}
}

// Session returns a copy of the live state of matchID.
func (d *Dispatcher) Session(matchID uuid.UUID) (SessionState, bool) {
	d.mu.RLock()
	s := d.byMatch[matchID]
	d.mu.RUnlock()
	if s == nil {
		return SessionState{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone(), !s.closed
}

func (d *Dispatcher) send(out ...outgoing) {
	for _, o := range out {
		if err := d.conns.Send(o.connectionID, o.payload); err != nil {
			d.logger.Warn("failed to deliver message", slog.String("connection_id", o.connectionID), slog.Any("error", err))
		}
	}
}

func broadcast(state SessionState, payload []byte) []outgoing {
	out := make([]outgoing, 0, 2)
	for _, c := range state.connections() {
		out = append(out, outgoing{c, payload})
	}
	return out
}

func parseID(msg models.Message) (uuid.UUID, error) {
	raw, err := msg.DataString()
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not an id", ErrMalformedMessage, raw)
	}
	return id, nil
}

func encode(msgType string, data any, list []float64) []byte {
	payload, err := models.EncodeMessage(msgType, data, list)
	if err != nil {
		// Строки и числа всегда сериализуются.
		panic(err)
	}
	return payload
}
