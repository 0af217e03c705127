package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"relayWs/internal/modules/realtime/domain"
	"relayWs/internal/shared/auth"
)

var ErrInvalidMessage = errors.New("invalid chat message")

// ChatUseCase validates chat sends and hands them to the broadcast router.
type ChatUseCase struct {
	room      string
	maxLength int
	broadcast *BroadcastUseCase
	validate  *validator.Validate
}

func NewChatUseCase(room string, maxLength int, broadcast *BroadcastUseCase) *ChatUseCase {
	return &ChatUseCase{
		room:      strings.TrimSpace(room),
		maxLength: maxLength,
		broadcast: broadcast,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (uc *ChatUseCase) Room() string { return uc.room }

// Topic is the broadcast topic of the chat room.
func (uc *ChatUseCase) Topic() domain.Topic { return domain.RoomTopic(uc.room) }

// Post validates cmd and publishes it as author.
func (uc *ChatUseCase) Post(ctx context.Context, author auth.Identity, cmd domain.ChatSendCommand) (domain.ChatMessage, error) {
	if author.Anonymous() {
		return domain.ChatMessage{}, fmt.Errorf("%w: anonymous author", ErrInvalidMessage)
	}
	if err := uc.validate.Struct(cmd); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if strings.TrimSpace(cmd.Message) == "" {
		return domain.ChatMessage{}, fmt.Errorf("%w: blank message", ErrInvalidMessage)
	}
	if uc.maxLength > 0 {
		if err := uc.validate.Var(cmd.Message, fmt.Sprintf("max=%d", uc.maxLength)); err != nil {
			return domain.ChatMessage{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
	}

	return uc.broadcast.PublishChat(ctx, domain.ChatMessage{
		Room:       uc.room,
		AuthorID:   author.ID,
		AuthorName: author.Username,
		Body:       cmd.Message,
	})
}
