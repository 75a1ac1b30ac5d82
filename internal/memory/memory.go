package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inktime/support-backend/internal/platform/kvstore"
	"github.com/inktime/support-backend/internal/platform/logger"
)

// Tiered per-session memory over a shared KV store. Three independent keys
// per session: episodic (recent turns, short TTL), semantic (facts) and
// procedural (named step lists), both long TTL. Every write refreshes its
// tier's TTL, so an active session never expires mid-conversation.
//
// Consistency is last-write-wins: concurrent requests for one session can
// race a read-modify-write, and the newer write survives. No cross-request
// locking.

const (
	DefaultWindow      = 5
	DefaultEpisodicTTL = 24 * time.Hour
	DefaultLongTermTTL = 30 * 24 * time.Hour
)

type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Procedure struct {
	Name     string    `json:"name"`
	Steps    []string  `json:"steps"`
	LastUsed time.Time `json:"last_used"`
}

// Summary reports per-tier sizes for a session, for admin inspection.
type Summary struct {
	SessionID  string `json:"session_id"`
	Turns      int    `json:"turns"`
	Facts      int    `json:"facts"`
	Procedures int    `json:"procedures"`
}

type Memory struct {
	log         *logger.Logger
	kv          kvstore.Store
	window      int
	episodicTTL time.Duration
	longTermTTL time.Duration
	now         func() time.Time
}

func New(log *logger.Logger, kv kvstore.Store, window int, episodicTTL, longTermTTL time.Duration) *Memory {
	if window <= 0 {
		window = DefaultWindow
	}
	if episodicTTL <= 0 {
		episodicTTL = DefaultEpisodicTTL
	}
	if longTermTTL <= 0 {
		longTermTTL = DefaultLongTermTTL
	}
	return &Memory{
		log:         log.With("service", "ConversationMemory"),
		kv:          kv,
		window:      window,
		episodicTTL: episodicTTL,
		longTermTTL: longTermTTL,
		now:         time.Now,
	}
}

func episodicKey(sessionID string) string   { return "episodic_" + sessionID }
func semanticKey(sessionID string) string   { return "semantic_" + sessionID }
func proceduralKey(sessionID string) string { return "procedural_" + sessionID }

// AddTurn appends to the episodic window, truncating to the most recent
// turns (oldest dropped first).
func (m *Memory) AddTurn(ctx context.Context, sessionID, role, content string) error {
	var turns []Turn
	if err := m.read(ctx, episodicKey(sessionID), &turns); err != nil {
		return err
	}
	turns = append(turns, Turn{Role: role, Content: content, Timestamp: m.now()})
	if len(turns) > m.window {
		turns = turns[len(turns)-m.window:]
	}
	return m.write(ctx, episodicKey(sessionID), turns, m.episodicTTL)
}

// Context returns the episodic window in original turn order.
func (m *Memory) Context(ctx context.Context, sessionID string) ([]Turn, error) {
	var turns []Turn
	if err := m.read(ctx, episodicKey(sessionID), &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

func (m *Memory) SetFact(ctx context.Context, sessionID, key, value string) error {
	facts := map[string]string{}
	if err := m.read(ctx, semanticKey(sessionID), &facts); err != nil {
		return err
	}
	facts[key] = value
	return m.write(ctx, semanticKey(sessionID), facts, m.longTermTTL)
}

func (m *Memory) Facts(ctx context.Context, sessionID string) (map[string]string, error) {
	facts := map[string]string{}
	if err := m.read(ctx, semanticKey(sessionID), &facts); err != nil {
		return nil, err
	}
	return facts, nil
}

// AddProcedure records a named step list, replacing any procedure of the
// same name and stamping it as just used.
func (m *Memory) AddProcedure(ctx context.Context, sessionID, name string, steps []string) error {
	var procedures []Procedure
	if err := m.read(ctx, proceduralKey(sessionID), &procedures); err != nil {
		return err
	}
	next := Procedure{Name: name, Steps: steps, LastUsed: m.now()}
	replaced := false
	for i, p := range procedures {
		if p.Name == name {
			procedures[i] = next
			replaced = true
			break
		}
	}
	if !replaced {
		procedures = append(procedures, next)
	}
	return m.write(ctx, proceduralKey(sessionID), procedures, m.longTermTTL)
}

func (m *Memory) Procedures(ctx context.Context, sessionID string) ([]Procedure, error) {
	var procedures []Procedure
	if err := m.read(ctx, proceduralKey(sessionID), &procedures); err != nil {
		return nil, err
	}
	return procedures, nil
}

// ClearSession deletes all three tiers for the session.
func (m *Memory) ClearSession(ctx context.Context, sessionID string) error {
	for _, key := range []string{episodicKey(sessionID), semanticKey(sessionID), proceduralKey(sessionID)} {
		if err := m.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
	}
	m.log.Info("Cleared session memory", "session_id", sessionID)
	return nil
}

func (m *Memory) Summarize(ctx context.Context, sessionID string) (*Summary, error) {
	turns, err := m.Context(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	facts, err := m.Facts(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	procedures, err := m.Procedures(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Summary{
		SessionID:  sessionID,
		Turns:      len(turns),
		Facts:      len(facts),
		Procedures: len(procedures),
	}, nil
}

func (m *Memory) read(ctx context.Context, key string, out any) error {
	raw, ok, err := m.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// A corrupt tier value resets that tier rather than wedging the
		// session forever.
		m.log.Warn("Discarding unreadable memory value", "key", key, "error", err)
	}
	return nil
}

func (m *Memory) write(ctx context.Context, key string, val any, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := m.kv.Set(ctx, key, raw, ttl); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
