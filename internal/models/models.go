package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User maps to the users collection. The document ID is the Discord user
// ID; the username is last-write-wins across observed activity.
type User struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// VoiceSession maps to the voice_sessions collection. A session is open
// while LeftAt is nil; closing it sets LeftAt and DurationSeconds exactly
// once. Closed sessions are never reopened.
type VoiceSession struct {
	ID              bson.ObjectID `bson:"_id,omitempty"`
	UserID          string        `bson:"user_id"`
	GuildID         string        `bson:"guild_id"`
	ChannelID       string        `bson:"channel_id"`
	ChannelName     string        `bson:"channel_name"`
	JoinedAt        time.Time     `bson:"joined_at"`
	LeftAt          *time.Time    `bson:"left_at"`
	DurationSeconds *int64        `bson:"duration_seconds"`
}

// Message maps to the messages collection. Immutable once created.
type Message struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	UserID    string        `bson:"user_id"`
	GuildID   string        `bson:"guild_id"`
	ChannelID string        `bson:"channel_id"`
	MessageID string        `bson:"message_id"`
	Emojis    []string      `bson:"emojis"`
	CreatedAt time.Time     `bson:"created_at"`
}

// Reaction maps to the reactions collection. One record per add/remove
// event; adds and removes are never paired or deduplicated.
type Reaction struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	UserID    string        `bson:"user_id"`
	GuildID   string        `bson:"guild_id"`
	ChannelID string        `bson:"channel_id"`
	MessageID string        `bson:"message_id"`
	Emoji     string        `bson:"emoji"`
	Action    string        `bson:"action"`
	CreatedAt time.Time     `bson:"created_at"`
}

// VoiceStats summarizes completed voice sessions for a user in a guild.
type VoiceStats struct {
	TotalSeconds    int64
	SessionCount    int64
	FavoriteChannel string
}

// MessageStats summarizes messages and emoji usage for a user in a guild.
type MessageStats struct {
	MessageCount  int64
	TotalEmojis   int64
	TopEmoji      string
	TopEmojiCount int64
}

// ReactionStats summarizes reaction activity for a user in a guild.
type ReactionStats struct {
	AddCount         int64
	RemoveCount      int64
	TopReaction      string
	TopReactionCount int64
}

// LeaderboardEntry is one ranked row of a guild leaderboard.
type LeaderboardEntry struct {
	UserID   string
	Username string
	Value    int64
}

// Leaderboards holds the four per-guild top-5 rankings.
type Leaderboards struct {
	VoiceTime []LeaderboardEntry
	Messages  []LeaderboardEntry
	Emojis    []LeaderboardEntry
	Reactions []LeaderboardEntry
}

// IsEmpty reports whether no board has any entries.
func (l Leaderboards) IsEmpty() bool {
	return len(l.VoiceTime) == 0 && len(l.Messages) == 0 &&
		len(l.Emojis) == 0 && len(l.Reactions) == 0
}
