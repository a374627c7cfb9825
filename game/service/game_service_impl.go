package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/wricardo/tilematch/game/engine"
	"github.com/wricardo/tilematch/logger"
	"github.com/wricardo/tilematch/monitor"
)

const (
	// SettleStep is the frame length used when the service plays animations out
	SettleStep = 16 * time.Millisecond
	// MaxSettleTicks bounds a single settle so a broken board cannot hang a request
	MaxSettleTicks = 100000
	// MaxBulkSelections caps the selections accepted by one BulkSelect call
	MaxBulkSelections = 50
)

// Option customises the service
type Option func(*gameServiceImpl)

// WithMonitor records action metrics on m
func WithMonitor(m *monitor.Monitor) Option {
	return func(s *gameServiceImpl) {
		s.monitor = m
	}
}

// WithSeedSource replaces the random seed used for sessions created without one
func WithSeedSource(fn func() uint64) Option {
	return func(s *gameServiceImpl) {
		s.newSeed = fn
	}
}

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	monitor  *monitor.Monitor
	newSeed  func() uint64
	// mu serialises every call that reaches a session or its Board, reads
	// included, since getSession records the access on the session
	mu sync.Mutex
}

// getConfigID returns the config_id for a given config name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		newSeed:  rand.Uint64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string, seed *uint64) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config *engine.Config
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("config '%s' not found, available configs %v: %w", configName, configIDs, err)
				}
				return nil, fmt.Errorf("config '%s' not found, use /api/configs to list available configurations: %w", configName, err)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	configID := configName
	if configID == "" {
		configID = s.getConfigID(config.Name)
	}

	seedValue := s.newSeed()
	if seed != nil {
		seedValue = *seed
	}

	// Let session manager generate a proper 4-character ID
	session, err := s.sessions.Create("", configID, config, seedValue)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.monitor.IncAction("create")
	s.monitor.SetActiveSessions(s.sessions.Count())
	logger.Log.Infow("session created", "session", session.ID, "config", configID, "seed", seedValue)

	return s.info(session), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return s.info(session), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.info(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}
	s.monitor.SetActiveSessions(s.sessions.Count())
	return nil
}

// Select activates the token at (x, y) and optionally plays the resulting
// animations out until the board is idle again.
func (s *gameServiceImpl) Select(ctx context.Context, sessionID string, x, y int, settle bool) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	board := sess.Board
	sess.Recorder.Drain()
	before := board.Stats()
	stateBefore := board.State()
	_, hadPending := board.Pending()
	groupSize := len(board.Group(x, y))
	cell := engine.Position{X: x, Y: y}

	if err := board.Select(x, y); err != nil {
		return nil, fmt.Errorf("select (%d,%d): %w", x, y, err)
	}

	result := &ActionResult{Action: "select"}
	_, hasPending := board.Pending()
	cfg := board.Config()
	switch {
	case stateBefore != engine.Idle:
		result.Message = fmt.Sprintf("board is %s; selection ignored until it settles", stateBefore)
		result.Events = append(result.Events, newEvent("ignored", result.Message, &cell))
	case board.Stats().Moves > before.Moves && cfg.Mode == engine.ModeSwap:
		result.Success = true
		result.Message = fmt.Sprintf("swapping with (%d,%d)", x, y)
		result.Events = append(result.Events, newEvent("swap", result.Message, &cell))
	case board.Stats().Moves > before.Moves:
		result.Success = true
		result.Message = fmt.Sprintf("removing group of %d at (%d,%d)", groupSize, x, y)
		result.Events = append(result.Events, newEvent("select", result.Message, &cell))
	case hasPending:
		result.Success = true
		result.Message = fmt.Sprintf("selected (%d,%d); pick an adjacent token to swap with", x, y)
		result.Events = append(result.Events, newEvent("select", result.Message, &cell))
	case hadPending:
		result.Success = true
		result.Message = "selection cleared"
		result.Events = append(result.Events, newEvent("select", result.Message, &cell))
	case groupSize == 0:
		result.Message = fmt.Sprintf("no token at (%d,%d)", x, y)
		result.Events = append(result.Events, newEvent("ignored", result.Message, &cell))
	default:
		result.Message = fmt.Sprintf("group of %d at (%d,%d) is below the match size of %d", groupSize, x, y, cfg.MatchSize)
		result.Events = append(result.Events, newEvent("ignored", result.Message, &cell))
	}

	var entry *HistoryEntry
	if result.Success {
		entry = &HistoryEntry{Action: "select", From: &cell}
	}
	return s.finish(sess, result, before, settle, start, entry)
}

// BulkSelect plays several selections in order, settling after each one, and
// stops at the first selection that has no effect.
func (s *gameServiceImpl) BulkSelect(ctx context.Context, sessionID string, cells []engine.Position, reset bool) (*BulkSelectResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	if reset {
		if err := s.resetBoard(sess); err != nil {
			return nil, err
		}
	}

	result := &BulkSelectResult{
		Requested: len(cells),
		Success:   true,
		Steps:     make([]StepInfo, 0, len(cells)),
	}
	if len(cells) > MaxBulkSelections {
		result.Truncated = true
		result.Limit = MaxBulkSelections
		cells = cells[:MaxBulkSelections]
	}

	start := sess.Board.Stats()
	for i, cell := range cells {
		if err := ctx.Err(); err != nil {
			result.Success = false
			result.StoppedReason = err.Error()
			result.StoppedOn = i + 1
			break
		}

		board := sess.Board
		if board.State() != engine.Idle {
			if _, err := board.Settle(SettleStep, MaxSettleTicks); err != nil {
				return nil, fmt.Errorf("failed to settle board: %w", err)
			}
		}

		before := board.Stats()
		_, hadPending := board.Pending()
		groupSize := len(board.Group(cell.X, cell.Y))
		step := StepInfo{Idx: i + 1, Cell: cell, GroupSize: groupSize}

		if err := board.Select(cell.X, cell.Y); err != nil {
			result.Steps = append(result.Steps, step)
			result.Success = false
			result.StoppedReason = fmt.Sprintf("selection %d failed: %v", i+1, err)
			result.StoppedOn = i + 1
			break
		}
		_, hasPending := board.Pending()
		if _, err := board.Settle(SettleStep, MaxSettleTicks); err != nil {
			return nil, fmt.Errorf("failed to settle board: %w", err)
		}

		after := board.Stats()
		step.Removed = after.TokensRemoved - before.TokensRemoved
		step.ScoreDelta = after.Score - before.Score
		step.Success = after.Moves > before.Moves || hasPending != hadPending
		result.Steps = append(result.Steps, step)

		if !step.Success {
			result.Success = false
			result.StoppedReason = fmt.Sprintf("selection %d at (%d,%d) had no effect: group of %d", i+1, cell.X, cell.Y, groupSize)
			result.StoppedOn = i + 1
			break
		}
		result.Executed++
		if after.Moves > before.Moves {
			c := cell
			s.appendHistory(sess, HistoryEntry{Action: "select", From: &c}, before)
		}
	}
	sess.Recorder.Drain()

	end := sess.Board.Stats()
	result.Removed = end.TokensRemoved - start.TokensRemoved
	result.ScoreDelta = end.Score - start.Score
	result.Board = sess.Board.View()

	s.monitor.IncAction("bulk_select")
	s.monitor.ObserveOutcome(end.Matches-start.Matches, result.Removed, end.Cascades-start.Cascades)
	s.save(sess)

	return result, nil
}

// Swap exchanges two adjacent tokens on a swap board
func (s *gameServiceImpl) Swap(ctx context.Context, sessionID string, a, b engine.Position, settle bool) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	board := sess.Board
	sess.Recorder.Drain()
	before := board.Stats()
	stateBefore := board.State()

	if err := board.Swap(a.X, a.Y, b.X, b.Y); err != nil {
		return nil, fmt.Errorf("swap (%d,%d) with (%d,%d): %w", a.X, a.Y, b.X, b.Y, err)
	}

	result := &ActionResult{Action: "swap"}
	switch {
	case stateBefore != engine.Idle:
		result.Message = fmt.Sprintf("board is %s; swap ignored until it settles", stateBefore)
		result.Events = append(result.Events, newEvent("ignored", result.Message, &a))
	case board.Stats().Moves > before.Moves:
		result.Success = true
		result.Message = fmt.Sprintf("swapping (%d,%d) with (%d,%d)", a.X, a.Y, b.X, b.Y)
		result.Events = append(result.Events, newEvent("swap", result.Message, &a))
	default:
		result.Message = "nothing to swap"
		result.Events = append(result.Events, newEvent("ignored", result.Message, &a))
	}

	var entry *HistoryEntry
	if result.Success {
		entry = &HistoryEntry{Action: "swap", From: &a, To: &b}
	}
	return s.finish(sess, result, before, settle, start, entry)
}

// Tick advances the session's board by dt
func (s *gameServiceImpl) Tick(ctx context.Context, sessionID string, dt time.Duration) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	board := sess.Board
	sess.Recorder.Drain()
	before := board.Stats()
	stateBefore := board.State()

	if err := board.Tick(dt); err != nil {
		return nil, fmt.Errorf("tick: %w", err)
	}

	result := &ActionResult{
		Action:  "tick",
		Success: true,
		Ticks:   1,
		Message: fmt.Sprintf("advanced %v; board is %s", dt, board.State()),
	}
	if stateBefore != engine.Idle && board.State() == engine.Idle {
		result.Events = append(result.Events, newEvent("settled", "board settled", nil))
	}
	return s.finish(sess, result, before, false, start, nil)
}

// Settle ticks the board at SettleStep until it is idle
func (s *gameServiceImpl) Settle(ctx context.Context, sessionID string) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sess.Recorder.Drain()
	before := sess.Board.Stats()
	wasIdle := sess.Board.State() == engine.Idle

	result := &ActionResult{Action: "settle", Success: true}
	result, err = s.finish(sess, result, before, true, start, nil)
	if err != nil {
		return nil, err
	}
	if wasIdle {
		result.Message = "board was already idle"
	} else {
		result.Message = fmt.Sprintf("settled after %d ticks", result.Ticks)
	}
	return result, nil
}

// Reset deals the session's opening board again and clears its history
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.BoardView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.resetBoard(sess); err != nil {
		return nil, err
	}

	s.monitor.IncAction("reset")
	s.save(sess)
	return sess.Board.View(), nil
}

// GetBoardView retrieves the current board
func (s *gameServiceImpl) GetBoardView(ctx context.Context, sessionID string) (*engine.BoardView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Board.View(), nil
}

// DescribeCell reports the token at (x, y), its group and its neighbours
func (s *gameServiceImpl) DescribeCell(ctx context.Context, sessionID string, x, y int) (*CellInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	board := sess.Board
	if x < 0 || x >= board.Width() || y < 0 || y >= board.Height() {
		return nil, fmt.Errorf("%w: (%d,%d) on a %dx%d board", engine.ErrOutOfRange, x, y, board.Width(), board.Height())
	}

	view := board.View()
	info := &CellInfo{
		X:          x,
		Y:          y,
		State:      board.State(),
		Stats:      board.Stats(),
		Neighbours: make(map[string]string, 4),
	}
	for name, d := range map[string]engine.Position{"left": {X: -1}, "right": {X: 1}, "down": {Y: -1}, "up": {Y: 1}} {
		info.Neighbours[name] = glyphAt(board, x+d.X, y+d.Y)
	}

	tok := board.At(x, y)
	if tok == nil {
		info.Empty = true
		return info, nil
	}
	tv := view.Cells[x][y]
	info.Token = &tv
	info.Glyph = string(engine.TypeGlyph(tok.Type))
	group := board.Group(x, y).Sorted()
	info.Group = group
	info.GroupSize = len(group)
	info.Playable = board.State() == engine.Idle &&
		board.Config().Mode == engine.ModeTap &&
		len(group) >= board.Config().MatchSize
	return info, nil
}

// GetHints lists playable moves. On tap boards each hint is a removable
// group, largest first; on swap boards it is a pair of cells to swap.
func (s *gameServiceImpl) GetHints(ctx context.Context, sessionID string, limit int) ([]engine.MatchSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	board := sess.Board
	if board.Config().Mode == engine.ModeSwap {
		return board.PlayableSwaps(limit), nil
	}
	if limit <= 0 {
		limit = -1
	}
	groups := board.LargestGroups(board.Config().MatchSize, limit)
	for i := range groups {
		groups[i] = groups[i].Sorted()
	}
	return groups, nil
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	history := sess.History
	total := len(history)

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	var moves []HistoryEntry
	if opts.Order == "desc" {
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			moves = append(moves, history[i])
		}
	} else if start < total {
		moves = history[start:end]
	}
	if moves == nil {
		moves = []HistoryEntry{}
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns available board configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific board configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.Config, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a board configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.Config) error {
	return s.configs.SaveConfig(configName, config)
}

// getSession looks a session up and marks it as accessed
func (s *gameServiceImpl) getSession(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", sessionID, err)
	}
	if sess.Recorder == nil {
		sess.Recorder = &EventRecorder{}
	}
	if err := s.sessions.UpdateLastAccessed(sessionID); err != nil {
		logger.Log.Debugw("failed to update last access", "session", sessionID, "error", err)
	}
	return sess, nil
}

// finish optionally settles the board, then fills in the outcome, records
// history and metrics and persists the session.
func (s *gameServiceImpl) finish(sess *Session, result *ActionResult, before engine.Stats, settle bool, start time.Time, entry *HistoryEntry) (*ActionResult, error) {
	board := sess.Board
	if settle && board.State() != engine.Idle {
		ticks, err := board.Settle(SettleStep, MaxSettleTicks)
		result.Ticks += ticks
		if err != nil {
			return nil, fmt.Errorf("failed to settle board: %w", err)
		}
		result.Events = append(result.Events, sess.Recorder.Drain()...)
		result.Events = append(result.Events, newEvent("settled", fmt.Sprintf("board settled after %d ticks", ticks), nil))
	} else {
		result.Events = append(result.Events, sess.Recorder.Drain()...)
	}

	after := board.Stats()
	result.Settled = board.State() == engine.Idle
	result.Removed = after.TokensRemoved - before.TokensRemoved
	result.ScoreDelta = after.Score - before.Score
	result.Cascades = after.Cascades - before.Cascades
	result.Board = board.View()

	if entry != nil {
		s.appendHistory(sess, *entry, before)
	}

	s.monitor.IncAction(result.Action)
	s.monitor.ObserveOutcome(after.Matches-before.Matches, result.Removed, result.Cascades)
	s.monitor.ObserveLatency(time.Since(start))

	// mid-animation boards are persisted once they settle
	if entry != nil || result.Settled {
		s.save(sess)
	}
	return result, nil
}

func (s *gameServiceImpl) appendHistory(sess *Session, entry HistoryEntry, before engine.Stats) {
	after := sess.Board.Stats()
	entry.Seq = len(sess.History) + 1
	entry.Removed = after.TokensRemoved - before.TokensRemoved
	entry.ScoreDelta = after.Score - before.Score
	entry.Score = after.Score
	entry.State = sess.Board.State()
	entry.Timestamp = time.Now()
	sess.History = append(sess.History, entry)
}

func (s *gameServiceImpl) resetBoard(sess *Session) error {
	board, err := sess.NewBoard()
	if err != nil {
		return fmt.Errorf("failed to reset board: %w", err)
	}
	sess.Board = board
	sess.History = nil
	sess.Recorder.Drain()
	return nil
}

func (s *gameServiceImpl) save(sess *Session) {
	if err := s.sessions.Save(sess.ID); err != nil {
		logger.Log.Warnw("failed to persist session", "session", sess.ID, "error", err)
	}
}

func (s *gameServiceImpl) info(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     sess.ConfigName,
		Seed:           sess.Seed,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		Board:          sess.Board.View(),
		BoardConfig:    sess.Config,
	}
}

func newEvent(kind, message string, p *engine.Position) GameEvent {
	e := GameEvent{Type: kind, Message: message, Timestamp: time.Now()}
	if p != nil {
		cp := *p
		e.Position = &cp
	}
	return e
}

// glyphAt renders one neighbour for DescribeCell: '#' off the board, '.' empty
func glyphAt(board *engine.Board, x, y int) string {
	if x < 0 || x >= board.Width() || y < 0 || y >= board.Height() {
		return "#"
	}
	t := board.At(x, y)
	if t == nil {
		return "."
	}
	return string(engine.TypeGlyph(t.Type))
}
