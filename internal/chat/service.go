package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inktime/support-backend/internal/answer"
	"github.com/inktime/support-backend/internal/ingest"
	"github.com/inktime/support-backend/internal/memory"
	"github.com/inktime/support-backend/internal/platform/kvstore"
	"github.com/inktime/support-backend/internal/platform/logger"
	"github.com/inktime/support-backend/internal/platform/openrouter"
	"github.com/inktime/support-backend/internal/repos"
	"github.com/inktime/support-backend/internal/retrieval"
	"github.com/inktime/support-backend/internal/types"
)

// User-safe replies for every failure mode on the answer path. Raw provider
// errors never reach the end user.
const (
	replyNoDocuments = "I can only answer questions based on the provided documents. Please upload relevant documents first."
	replyNoRelevant  = "I don't have that information in my knowledge base."
	replyUnavailable = "I'm currently unable to process your request. Please try again later."
	replyKBTrouble   = "I'm having trouble accessing the knowledge base. Please try again later."
)

const systemPrompt = `You are the support assistant for this knowledge base.

STRICT RULES:
1. Your response MUST be based ONLY on the provided document context
2. If the answer isn't in the context, say 'I don't have that information in my knowledge base.'
3. Use the exact wording from the context when possible
4. Be concise and professional in your responses
5. Never make up information not in the context`

// Retriever abstracts the retrieval service for testing.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (string, error)
}

// Generator abstracts the racing answer client for testing.
type Generator interface {
	Generate(ctx context.Context, messages []openrouter.Message, preferredModel string) (*answer.Result, error)
}

// Reply is one assistant turn as shown to the user.
type Reply struct {
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Service orchestrates a chat turn: documents-available gate, memory
// context, retrieval, the model race, persistence. Every failure degrades to
// a static user-safe reply.
type Service struct {
	log            *logger.Logger
	conversations  repos.ConversationRepo
	messages       repos.MessageRepo
	documents      repos.DocumentRepo
	memory         *memory.Memory
	retriever      Retriever
	generator      Generator
	post           answer.PostProcessor
	kv             kvstore.Store
	requestTimeout time.Duration
}

func NewService(
	log *logger.Logger,
	conversations repos.ConversationRepo,
	messages repos.MessageRepo,
	documents repos.DocumentRepo,
	mem *memory.Memory,
	retriever Retriever,
	generator Generator,
	post answer.PostProcessor,
	kv kvstore.Store,
	requestTimeout time.Duration,
) *Service {
	if post == nil {
		post = answer.NopPostProcessor{}
	}
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	return &Service{
		log:            log.With("service", "ChatService"),
		conversations:  conversations,
		messages:       messages,
		documents:      documents,
		memory:         mem,
		retriever:      retriever,
		generator:      generator,
		post:           post,
		kv:             kv,
		requestTimeout: requestTimeout,
	}
}

// Respond handles one user turn end to end. The returned reply is always
// user-safe; the error return is for infrastructure failures (persistence)
// only, never for model or retrieval trouble.
func (s *Service) Respond(ctx context.Context, sessionID, userMessage string) (*Reply, error) {
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return nil, fmt.Errorf("empty message")
	}
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	conversation, err := s.conversations.GetOrCreateBySession(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	if _, err := s.messages.Create(ctx, nil, &types.Message{
		ConversationID: conversation.ID,
		Sender:         types.SenderUser,
		Content:        userMessage,
	}); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}
	if err := s.memory.AddTurn(ctx, sessionID, types.SenderUser, userMessage); err != nil {
		s.log.Warn("Failed to record user turn in memory", "session_id", sessionID, "error", err)
	}

	reply := s.answerTurn(ctx, sessionID, userMessage)

	if _, err := s.messages.Create(ctx, nil, &types.Message{
		ConversationID: conversation.ID,
		Sender:         types.SenderAssistant,
		Content:        reply.Content,
		Model:          reply.Model,
	}); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}
	if err := s.conversations.Touch(ctx, nil, conversation); err != nil {
		s.log.Warn("Failed to touch conversation", "session_id", sessionID, "error", err)
	}
	if err := s.memory.AddTurn(ctx, sessionID, types.SenderAssistant, reply.Content); err != nil {
		s.log.Warn("Failed to record assistant turn in memory", "session_id", sessionID, "error", err)
	}
	return reply, nil
}

// answerTurn produces the reply text. It never returns an error: everything
// that can go wrong maps to a static reply.
func (s *Service) answerTurn(ctx context.Context, sessionID, userMessage string) *Reply {
	now := time.Now()

	available, err := s.documentsAvailable(ctx)
	if err != nil {
		s.log.Error("Failed to check document availability", "error", err)
		return &Reply{Content: replyKBTrouble, Timestamp: now}
	}
	if !available {
		return &Reply{Content: replyNoDocuments, Timestamp: now}
	}

	contextBlock, err := s.retriever.Retrieve(ctx, userMessage, retrieval.DefaultTopK)
	if err != nil {
		if errors.Is(err, retrieval.ErrNoRelevantContent) {
			// Nothing relevant indexed: answer honestly without a model call.
			return &Reply{Content: s.post.Process(replyNoRelevant), Timestamp: now}
		}
		s.log.Error("Retrieval failed", "session_id", sessionID, "error", err)
		return &Reply{Content: replyKBTrouble, Timestamp: now}
	}

	messages := s.buildMessages(ctx, sessionID, userMessage, contextBlock)
	result, err := s.generator.Generate(ctx, messages, "")
	if err != nil {
		if errors.Is(err, answer.ErrAllModelsExhausted) {
			s.log.Error("All models exhausted", "session_id", sessionID)
		} else {
			s.log.Error("Answer generation failed", "session_id", sessionID, "error", err)
		}
		return &Reply{Content: replyUnavailable, Timestamp: now}
	}

	return &Reply{
		Content:   s.post.Process(result.Content),
		Model:     result.Model,
		Timestamp: now,
	}
}

// documentsAvailable consults the cached flag first, then falls back to
// counting processed rows, re-priming the flag (no expiry) when documents
// exist.
func (s *Service) documentsAvailable(ctx context.Context) (bool, error) {
	if _, ok, err := s.kv.Get(ctx, ingest.DocumentsAvailableKey); err == nil && ok {
		return true, nil
	}
	has, err := s.documents.HasProcessed(ctx, nil)
	if err != nil {
		return false, err
	}
	if has {
		if err := s.kv.Set(ctx, ingest.DocumentsAvailableKey, []byte("1"), 0); err != nil {
			s.log.Warn("Failed to prime documents-available flag", "error", err)
		}
	}
	return has, nil
}

// buildMessages assembles the prompt: persona system message, the recent
// episodic window, then the user's question wrapped with the document
// excerpts and faithfulness instructions.
func (s *Service) buildMessages(ctx context.Context, sessionID, userMessage, contextBlock string) []openrouter.Message {
	messages := []openrouter.Message{{Role: "system", Content: systemPrompt}}

	turns, err := s.memory.Context(ctx, sessionID)
	if err != nil {
		s.log.Warn("Failed to read conversation memory", "session_id", sessionID, "error", err)
	}
	for _, turn := range turns {
		role := turn.Role
		if role != "assistant" {
			role = "user"
		}
		// The current user message is already in the window; it gets the
		// enhanced form below instead.
		if role == "user" && turn.Content == userMessage {
			continue
		}
		messages = append(messages, openrouter.Message{Role: role, Content: turn.Content})
	}

	enhanced := fmt.Sprintf(`DOCUMENT EXCERPTS:
%s

QUESTION: %q

INSTRUCTIONS:
1. If this is a factual question, answer using the EXACT wording from the documents above.
2. If you need to combine information, stay as close to the original text as possible.
3. Only rephrase if the question is clearly conversational.
4. If the information isn't in the documents, say: "I don't have that information in my knowledge base."

ANSWER (use exact text when possible):`, contextBlock, userMessage)

	return append(messages, openrouter.Message{Role: "user", Content: enhanced})
}

// History returns the conversation's persisted messages, oldest first.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]*types.Message, error) {
	conversation, err := s.conversations.GetOrCreateBySession(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	return s.messages.ListByConversation(ctx, nil, conversation.ID, limit)
}

// MarkRead flags a message as read, for admin inbox views.
func (s *Service) MarkRead(ctx context.Context, messageID uuid.UUID) error {
	return s.messages.MarkRead(ctx, nil, messageID)
}

// MemorySummary reports per-tier memory sizes for a session.
func (s *Service) MemorySummary(ctx context.Context, sessionID string) (*memory.Summary, error) {
	return s.memory.Summarize(ctx, sessionID)
}

// ClearSession wipes all memory tiers for a session.
func (s *Service) ClearSession(ctx context.Context, sessionID string) error {
	return s.memory.ClearSession(ctx, sessionID)
}
