package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/chatdeck/chatdeck/internal/chat"
	"github.com/chatdeck/chatdeck/internal/platform/id"
	"github.com/chatdeck/chatdeck/internal/storage"
)

const defaultPageSize = 50

// SaveMessage stores the event and returns the id it assigned. The
// caller's event is not mutated; live delivery happens regardless of
// whether this call succeeds.
func (s *Store) SaveMessage(ctx context.Context, event chat.Event) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(event.SenderID) == "" {
		return "", fmt.Errorf("sender id is required")
	}

	messageID, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("assign message id: %w", err)
	}
	roomID := event.RoomID
	if strings.TrimSpace(roomID) == "" {
		roomID = chat.DefaultRoom
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO messages (id, kind, content, sender_id, sender_name, receiver_id, room_id, read, sent_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		messageID,
		string(event.Kind),
		event.Content,
		event.SenderID,
		event.SenderName,
		event.ReceiverID,
		roomID,
		toMillis(event.Timestamp),
	); err != nil {
		return "", fmt.Errorf("insert message: %w", err)
	}
	return messageID, nil
}

// RoomMessages returns a room's messages in chronological order. The
// query pages from the newest backwards and reverses, matching how
// clients load history.
func (s *Store) RoomMessages(ctx context.Context, roomID string, limit, offset int) ([]chat.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, kind, content, sender_id, sender_name, receiver_id, room_id, read, sent_at
FROM messages
WHERE room_id = ? AND receiver_id = ''
ORDER BY sent_at DESC
LIMIT ? OFFSET ?`, roomID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query room messages: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	reverse(events)
	return events, nil
}

// PairMessages returns the private messages exchanged between two
// users, either direction, in chronological order.
func (s *Store) PairMessages(ctx context.Context, userA, userB string, limit, offset int) ([]chat.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, kind, content, sender_id, sender_name, receiver_id, room_id, read, sent_at
FROM messages
WHERE (sender_id = ?1 AND receiver_id = ?2) OR (sender_id = ?2 AND receiver_id = ?1)
ORDER BY sent_at DESC
LIMIT ?3 OFFSET ?4`, userA, userB, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query pair messages: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	reverse(events)
	return events, nil
}

// MarkRead flags one message as read.
func (s *Store) MarkRead(ctx context.Context, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `UPDATE messages SET read = 1 WHERE id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkPairRead flags every unread message from otherID to userID as
// read and returns how many changed.
func (s *Store) MarkPairRead(ctx context.Context, userID, otherID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE messages SET read = 1
WHERE sender_id = ? AND receiver_id = ? AND read = 0`, otherID, userID)
	if err != nil {
		return 0, fmt.Errorf("mark pair read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark pair read: %w", err)
	}
	return affected, nil
}

// UnreadCount counts unread messages sent by otherID to userID.
func (s *Store) UnreadCount(ctx context.Context, userID, otherID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var count int64
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(*) FROM messages
WHERE sender_id = ? AND receiver_id = ? AND read = 0`, otherID, userID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// RecentConversations summarizes the user's private threads, most
// recent first.
func (s *Store) RecentConversations(ctx context.Context, userID string) ([]storage.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
    other.id,
    other.username,
    other.online,
    last.content,
    last.sent_at,
    (SELECT COUNT(*) FROM messages m
     WHERE m.sender_id = other.id AND m.receiver_id = ?1 AND m.read = 0)
FROM (
    SELECT
        CASE WHEN sender_id = ?1 THEN receiver_id ELSE sender_id END AS other_id,
        MAX(sent_at) AS last_at
    FROM messages
    WHERE receiver_id != '' AND (sender_id = ?1 OR receiver_id = ?1)
    GROUP BY other_id
) thread
JOIN users other ON other.id = thread.other_id
JOIN messages last ON last.sent_at = thread.last_at
    AND ((last.sender_id = ?1 AND last.receiver_id = other.id)
      OR (last.sender_id = other.id AND last.receiver_id = ?1))
ORDER BY thread.last_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []storage.Conversation
	for rows.Next() {
		var c storage.Conversation
		var online int64
		var lastAt int64
		if err := rows.Scan(&c.OtherUserID, &c.OtherUsername, &online, &c.LastMessage, &lastAt, &c.UnreadCount); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.OtherOnline = online != 0
		c.LastMessageAt = fromMillis(lastAt)
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return conversations, nil
}

func scanEvents(rows *sql.Rows) ([]chat.Event, error) {
	var events []chat.Event
	for rows.Next() {
		var event chat.Event
		var kind string
		var read int64
		var sentAt int64
		if err := rows.Scan(&event.ID, &kind, &event.Content, &event.SenderID, &event.SenderName,
			&event.ReceiverID, &event.RoomID, &read, &sentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		event.Kind = chat.Kind(kind)
		event.Read = read != 0
		event.Timestamp = fromMillis(sentAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return events, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func reverse(events []chat.Event) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}
