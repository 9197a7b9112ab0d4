package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"pricebot/internal/application/port"
)

// Publisher keeps rendered session messages in redis and announces every
// send/edit on a channel, for a chat gateway to deliver. Messages live in
// one hash per session: field = message id, value = text.
type Publisher struct {
	rdb     *redis.Client
	prefix  string
	channel string
}

// MessageEvent is the JSON published for each send or edit.
type MessageEvent struct {
	Op        string `json:"op"` // send | edit
	Session   string `json:"session"`
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

func NewPublisher(rdb *redis.Client, prefix string) *Publisher {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "pricebot"
	}
	return &Publisher{rdb: rdb, prefix: prefix, channel: prefix + ":messages:pub"}
}

func (p *Publisher) Channel() string { return p.channel }

func (p *Publisher) keyMessages(session string) string {
	return p.prefix + ":messages:" + session
}

func (p *Publisher) Send(ctx context.Context, session, text string) (string, error) {
	n, err := p.rdb.Incr(ctx, p.prefix+":message_seq").Result()
	if err != nil {
		return "", err
	}
	id := strconv.FormatInt(n, 10)
	if err := p.rdb.HSet(ctx, p.keyMessages(session), id, text).Err(); err != nil {
		return "", err
	}
	return id, p.announce(ctx, MessageEvent{Op: "send", Session: session, MessageID: id, Text: text})
}

// Edit returns port.ErrMessageGone when the message was deleted. Unchanged
// text is not re-announced.
func (p *Publisher) Edit(ctx context.Context, session, messageID, text string) error {
	old, err := p.rdb.HGet(ctx, p.keyMessages(session), messageID).Result()
	if err == redis.Nil {
		return port.ErrMessageGone
	}
	if err != nil {
		return err
	}
	if old == text {
		return nil
	}
	if err := p.rdb.HSet(ctx, p.keyMessages(session), messageID, text).Err(); err != nil {
		return err
	}
	return p.announce(ctx, MessageEvent{Op: "edit", Session: session, MessageID: messageID, Text: text})
}

// Delete removes a message, as the chat side does when a user deletes it.
func (p *Publisher) Delete(ctx context.Context, session, messageID string) (bool, error) {
	n, err := p.rdb.HDel(ctx, p.keyMessages(session), messageID).Result()
	return n > 0, err
}

// Text returns the current text of a message.
func (p *Publisher) Text(ctx context.Context, session, messageID string) (string, error) {
	text, err := p.rdb.HGet(ctx, p.keyMessages(session), messageID).Result()
	if err == redis.Nil {
		return "", port.ErrMessageGone
	}
	return text, err
}

func (p *Publisher) announce(ctx context.Context, ev MessageEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, string(b)).Err()
}

var _ port.Publisher = (*Publisher)(nil)
