package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chatdeck/chatdeck/internal/platform/id"
	"github.com/chatdeck/chatdeck/internal/storage"
)

// PublicRooms lists public rooms, seeding the default general/random
// pair when none exist yet.
func (s *Store) PublicRooms(ctx context.Context) ([]storage.Room, error) {
	rooms, err := s.publicRooms(ctx)
	if err != nil {
		return nil, err
	}
	if len(rooms) > 0 {
		return rooms, nil
	}

	defaults := []storage.Room{
		{Name: "general", Description: "General Chat Room"},
		{Name: "random", Description: "Random Discussions"},
	}
	for _, room := range defaults {
		if _, err := s.CreateRoom(ctx, room); err != nil {
			return nil, fmt.Errorf("seed default room %s: %w", room.Name, err)
		}
	}
	return s.publicRooms(ctx)
}

func (s *Store) publicRooms(ctx context.Context) ([]storage.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, name, description, created_by, private, created_at
FROM rooms
WHERE private = 0
ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []storage.Room
	for rows.Next() {
		var room storage.Room
		var private int64
		var createdAt int64
		if err := rows.Scan(&room.ID, &room.Name, &room.Description, &room.CreatedBy, &private, &createdAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		room.Private = private != 0
		room.CreatedAt = fromMillis(createdAt)
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}

// CreateRoom inserts a room, assigning an id when the caller left it
// empty, and returns the stored record.
func (s *Store) CreateRoom(ctx context.Context, room storage.Room) (storage.Room, error) {
	if err := ctx.Err(); err != nil {
		return storage.Room{}, err
	}
	if strings.TrimSpace(room.Name) == "" {
		return storage.Room{}, fmt.Errorf("room name is required")
	}
	if strings.TrimSpace(room.ID) == "" {
		roomID, err := id.NewID()
		if err != nil {
			return storage.Room{}, fmt.Errorf("assign room id: %w", err)
		}
		room.ID = roomID
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}

	privateValue := 0
	if room.Private {
		privateValue = 1
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO rooms (id, name, description, created_by, private, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		room.ID, room.Name, room.Description, room.CreatedBy, privateValue, toMillis(room.CreatedAt),
	); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return storage.Room{}, storage.ErrAlreadyExists
		}
		return storage.Room{}, fmt.Errorf("insert room: %w", err)
	}
	return room, nil
}
