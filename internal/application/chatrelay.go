package application

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/syncstream/syncstream/internal/domain"
	"github.com/syncstream/syncstream/internal/infrastructure/metrics"
	"github.com/syncstream/syncstream/internal/infrastructure/registry"
	"github.com/syncstream/syncstream/internal/infrastructure/validate"
	"github.com/syncstream/syncstream/internal/infrastructure/ws"
	"go.uber.org/zap"
)

// ChatRelay keeps a bounded in-memory chat log per room and broadcasts
// accepted messages to every online member, the sender included — the
// sender's view of its own message is the delivered one, not a local echo.
//
// Message ids are monotonic ULIDs scoped to the room, so lexicographic
// comparison equals send order and reconnect catch-up is a string compare.
type ChatRelay struct {
	mu   sync.Mutex
	logs map[string]*roomLog

	retention    int
	validateText validate.Validator

	registry *registry.Registry
	fanout   *Fanout
	logger   *zap.SugaredLogger
}

type roomLog struct {
	entropy  *ulid.MonotonicEntropy
	messages []domain.Message
}

func NewChatRelay(reg *registry.Registry, fanout *Fanout, retention, maxRunes int, logger *zap.SugaredLogger) *ChatRelay {
	if retention <= 0 {
		retention = 500
	}
	if maxRunes <= 0 {
		maxRunes = 2000
	}

	return &ChatRelay{
		logs:      make(map[string]*roomLog),
		retention: retention,
		validateText: validate.Compose(
			validate.Required(),
			validate.MaxRunes(maxRunes),
		),
		registry: reg,
		fanout:   fanout,
		logger:   logger,
	}
}

// Post validates, appends and broadcasts one message. Messages are immutable
// once appended; the log is trimmed from the front past the retention limit.
func (cr *ChatRelay) Post(roomID, senderID, text string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if err := cr.validateText(text); err != nil {
		return domain.Message{}, domain.ErrInvalidInput
	}

	now := time.Now().UTC()

	// Existence is checked under the log mutex: DropRoom takes the same
	// mutex and runs only after the room left the registry, so an eviction
	// racing this post cannot leave an orphaned log behind.
	cr.mu.Lock()
	if !cr.registry.Exists(roomID) {
		cr.mu.Unlock()
		return domain.Message{}, domain.ErrRoomNotFound
	}
	log, ok := cr.logs[roomID]
	if !ok {
		log = &roomLog{entropy: ulid.Monotonic(rand.Reader, 0)}
		cr.logs[roomID] = log
	}

	message := domain.Message{
		ID:       ulid.MustNew(ulid.Timestamp(now), log.entropy).String(),
		RoomID:   roomID,
		SenderID: senderID,
		Text:     text,
		SentAt:   now,
	}

	log.messages = append(log.messages, message)
	if len(log.messages) > cr.retention {
		overflow := len(log.messages) - cr.retention
		log.messages = append([]domain.Message(nil), log.messages[overflow:]...)
	}
	cr.mu.Unlock()

	metrics.MessagesPosted.Inc()
	cr.registry.Touch(roomID)

	cr.fanout.Broadcast(roomID, ws.NewChatMessage(message), "")

	return message, nil
}

// History returns retained messages newer than sinceID, oldest first. An
// empty sinceID returns the whole retained log.
func (cr *ChatRelay) History(roomID, sinceID string) []domain.Message {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	log, ok := cr.logs[roomID]
	if !ok {
		return []domain.Message{}
	}

	start := 0
	if sinceID != "" {
		start = len(log.messages)
		for i, msg := range log.messages {
			if msg.ID > sinceID {
				start = i
				break
			}
		}
	}

	history := make([]domain.Message, len(log.messages)-start)
	copy(history, log.messages[start:])
	return history
}

// DropRoom discards a room's log; wired as a registry evict hook.
func (cr *ChatRelay) DropRoom(roomID string) {
	cr.mu.Lock()
	delete(cr.logs, roomID)
	cr.mu.Unlock()
}
