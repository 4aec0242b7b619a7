package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"graig/internal/models"
)

// Reaction actions recorded in the reactions collection.
const (
	ReactionAdd    = "add"
	ReactionRemove = "remove"
)

// UnknownUsername is substituted for leaderboard entries whose user has no
// record in the users collection.
const UnknownUsername = "Unknown"

const leaderboardSize = 5

// Store exposes typed queries over the activity collections.
type Store struct {
	users     *mongo.Collection
	sessions  *mongo.Collection
	messages  *mongo.Collection
	reactions *mongo.Collection
}

// NewStore creates a store over the client's database.
func NewStore(c *Client) *Store {
	db := c.Database()
	return &Store{
		users:     db.Collection(collUsers),
		sessions:  db.Collection(collVoiceSessions),
		messages:  db.Collection(collMessages),
		reactions: db.Collection(collReactions),
	}
}

// UpsertUser creates or updates a user document with their current
// username. Last write wins.
func (s *Store) UpsertUser(ctx context.Context, userID, username string) error {
	_, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"username": username, "updated_at": time.Now().UTC()}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// StartVoiceSession records a user joining a voice channel by inserting an
// open session document.
func (s *Store) StartVoiceSession(ctx context.Context, userID, guildID, channelID, channelName string) error {
	session := models.VoiceSession{
		UserID:      userID,
		GuildID:     guildID,
		ChannelID:   channelID,
		ChannelName: channelName,
		JoinedAt:    time.Now().UTC(),
	}
	if _, err := s.sessions.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("failed to start voice session: %w", err)
	}
	return nil
}

// EndVoiceSession closes the most recently joined open session for the
// user in the guild, setting left_at and the whole-second duration. A
// missing open session is a no-op, not an error.
func (s *Store) EndVoiceSession(ctx context.Context, userID, guildID string) error {
	now := time.Now().UTC()

	var session models.VoiceSession
	err := s.sessions.FindOne(ctx,
		bson.M{"user_id": userID, "guild_id": guildID, "left_at": nil},
		options.FindOne().SetSort(bson.D{{Key: "joined_at", Value: -1}}),
	).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find open voice session: %w", err)
	}

	duration := int64(now.Sub(session.JoinedAt).Seconds())
	if duration < 0 {
		duration = 0
	}

	_, err = s.sessions.UpdateOne(ctx,
		bson.M{"_id": session.ID},
		bson.M{"$set": bson.M{"left_at": now, "duration_seconds": duration}},
	)
	if err != nil {
		return fmt.Errorf("failed to end voice session: %w", err)
	}
	return nil
}

// RecordMessage records a message sent by a user with any emojis used.
func (s *Store) RecordMessage(ctx context.Context, userID, guildID, channelID, messageID string, emojis []string) error {
	if emojis == nil {
		emojis = []string{}
	}
	msg := models.Message{
		UserID:    userID,
		GuildID:   guildID,
		ChannelID: channelID,
		MessageID: messageID,
		Emojis:    emojis,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}
	return nil
}

// RecordReaction records a reaction add or remove event.
func (s *Store) RecordReaction(ctx context.Context, userID, guildID, channelID, messageID, emoji, action string) error {
	reaction := models.Reaction{
		UserID:    userID,
		GuildID:   guildID,
		ChannelID: channelID,
		MessageID: messageID,
		Emoji:     emoji,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.reactions.InsertOne(ctx, reaction); err != nil {
		return fmt.Errorf("failed to record reaction: %w", err)
	}
	return nil
}

// VoiceStats returns voice totals and the favorite channel for a user in
// a guild. Only completed sessions count. Ties on favorite channel break
// lexicographically on channel name.
func (s *Store) VoiceStats(ctx context.Context, userID, guildID string) (models.VoiceStats, error) {
	var stats models.VoiceStats

	match := bson.D{{Key: "$match", Value: bson.D{
		{Key: "user_id", Value: userID},
		{Key: "guild_id", Value: guildID},
		{Key: "duration_seconds", Value: bson.D{{Key: "$ne", Value: nil}}},
	}}}

	totalsPipeline := mongo.Pipeline{
		match,
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total_seconds", Value: bson.D{{Key: "$sum", Value: "$duration_seconds"}}},
			{Key: "session_count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	var totals []struct {
		TotalSeconds int64 `bson:"total_seconds"`
		SessionCount int64 `bson:"session_count"`
	}
	if err := s.aggregate(ctx, s.sessions, totalsPipeline, &totals); err != nil {
		return stats, fmt.Errorf("failed to aggregate voice totals: %w", err)
	}
	if len(totals) > 0 {
		stats.TotalSeconds = totals[0].TotalSeconds
		stats.SessionCount = totals[0].SessionCount
	}

	channelPipeline := mongo.Pipeline{
		match,
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$channel_name"},
			{Key: "time", Value: bson.D{{Key: "$sum", Value: "$duration_seconds"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "time", Value: -1},
			{Key: "_id", Value: 1},
		}}},
		bson.D{{Key: "$limit", Value: 1}},
	}

	var channels []struct {
		ChannelName string `bson:"_id"`
	}
	if err := s.aggregate(ctx, s.sessions, channelPipeline, &channels); err != nil {
		return stats, fmt.Errorf("failed to aggregate favorite channel: %w", err)
	}
	if len(channels) > 0 {
		stats.FavoriteChannel = channels[0].ChannelName
	}

	return stats, nil
}

// MessageStats returns message and emoji usage statistics for a user in a
// guild. Emoji counts are computed by flattening the emoji arrays of
// messages that contain at least one emoji. Ties on the top emoji break
// lexicographically.
func (s *Store) MessageStats(ctx context.Context, userID, guildID string) (models.MessageStats, error) {
	var stats models.MessageStats

	count, err := s.messages.CountDocuments(ctx, bson.M{"user_id": userID, "guild_id": guildID})
	if err != nil {
		return stats, fmt.Errorf("failed to count messages: %w", err)
	}
	stats.MessageCount = count

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "user_id", Value: userID},
			{Key: "guild_id", Value: guildID},
			{Key: "emojis.0", Value: bson.D{{Key: "$exists", Value: true}}},
		}}},
		bson.D{{Key: "$unwind", Value: "$emojis"}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$emojis"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "count", Value: -1},
			{Key: "_id", Value: 1},
		}}},
	}

	var emojiCounts []struct {
		Emoji string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := s.aggregate(ctx, s.messages, pipeline, &emojiCounts); err != nil {
		return stats, fmt.Errorf("failed to aggregate emoji usage: %w", err)
	}

	for _, e := range emojiCounts {
		stats.TotalEmojis += e.Count
	}
	if len(emojiCounts) > 0 {
		stats.TopEmoji = emojiCounts[0].Emoji
		stats.TopEmojiCount = emojiCounts[0].Count
	}

	return stats, nil
}

// ReactionStats returns reaction statistics for a user in a guild. The top
// reaction is computed over add events only.
func (s *Store) ReactionStats(ctx context.Context, userID, guildID string) (models.ReactionStats, error) {
	var stats models.ReactionStats

	addCount, err := s.reactions.CountDocuments(ctx,
		bson.M{"user_id": userID, "guild_id": guildID, "action": ReactionAdd})
	if err != nil {
		return stats, fmt.Errorf("failed to count reaction adds: %w", err)
	}
	stats.AddCount = addCount

	removeCount, err := s.reactions.CountDocuments(ctx,
		bson.M{"user_id": userID, "guild_id": guildID, "action": ReactionRemove})
	if err != nil {
		return stats, fmt.Errorf("failed to count reaction removes: %w", err)
	}
	stats.RemoveCount = removeCount

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "user_id", Value: userID},
			{Key: "guild_id", Value: guildID},
			{Key: "action", Value: ReactionAdd},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$emoji"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "count", Value: -1},
			{Key: "_id", Value: 1},
		}}},
		bson.D{{Key: "$limit", Value: 1}},
	}

	var top []struct {
		Emoji string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := s.aggregate(ctx, s.reactions, pipeline, &top); err != nil {
		return stats, fmt.Errorf("failed to aggregate top reaction: %w", err)
	}
	if len(top) > 0 {
		stats.TopReaction = top[0].Emoji
		stats.TopReactionCount = top[0].Count
	}

	return stats, nil
}

// FirstActivity returns the earliest recorded activity timestamp for a
// user in a guild across voice sessions, messages and reactions, or nil
// when no activity exists.
func (s *Store) FirstActivity(ctx context.Context, userID, guildID string) (*time.Time, error) {
	filter := bson.M{"user_id": userID, "guild_id": guildID}

	var dates []time.Time

	var voice struct {
		JoinedAt time.Time `bson:"joined_at"`
	}
	err := s.sessions.FindOne(ctx, filter,
		options.FindOne().
			SetSort(bson.D{{Key: "joined_at", Value: 1}}).
			SetProjection(bson.D{{Key: "joined_at", Value: 1}}),
	).Decode(&voice)
	if err == nil {
		dates = append(dates, voice.JoinedAt)
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to find earliest voice session: %w", err)
	}

	for _, coll := range []*mongo.Collection{s.messages, s.reactions} {
		var doc struct {
			CreatedAt time.Time `bson:"created_at"`
		}
		err := coll.FindOne(ctx, filter,
			options.FindOne().
				SetSort(bson.D{{Key: "created_at", Value: 1}}).
				SetProjection(bson.D{{Key: "created_at", Value: 1}}),
		).Decode(&doc)
		if err == nil {
			dates = append(dates, doc.CreatedAt)
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to find earliest activity in %s: %w", coll.Name(), err)
		}
	}

	if len(dates) == 0 {
		return nil, nil
	}

	earliest := dates[0]
	for _, d := range dates[1:] {
		if d.Before(earliest) {
			earliest = d
		}
	}
	return &earliest, nil
}

// GuildLeaderboards returns the four top-5 rankings for a guild, each
// strictly descending with ties broken by user ID. The date range is
// inclusive on both ends; a nil bound leaves that side open.
func (s *Store) GuildLeaderboards(ctx context.Context, guildID string, start, end *time.Time) (models.Leaderboards, error) {
	var boards models.Leaderboards

	// Voice time: completed sessions filtered by when the user left.
	voiceMatch := bson.D{
		{Key: "guild_id", Value: guildID},
		{Key: "duration_seconds", Value: bson.D{{Key: "$ne", Value: nil}}},
	}
	if rng := dateRange(start, end); rng != nil {
		voiceMatch = append(voiceMatch, bson.E{Key: "left_at", Value: rng})
	}
	voiceRows, err := s.topUsers(ctx, s.sessions, mongo.Pipeline{
		bson.D{{Key: "$match", Value: voiceMatch}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$user_id"},
			{Key: "value", Value: bson.D{{Key: "$sum", Value: "$duration_seconds"}}},
		}}},
	})
	if err != nil {
		return boards, fmt.Errorf("failed to aggregate voice leaderboard: %w", err)
	}

	messageMatch := bson.D{{Key: "guild_id", Value: guildID}}
	if rng := dateRange(start, end); rng != nil {
		messageMatch = append(messageMatch, bson.E{Key: "created_at", Value: rng})
	}
	messageRows, err := s.topUsers(ctx, s.messages, mongo.Pipeline{
		bson.D{{Key: "$match", Value: messageMatch}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$user_id"},
			{Key: "value", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return boards, fmt.Errorf("failed to aggregate message leaderboard: %w", err)
	}

	emojiMatch := append(bson.D{}, messageMatch...)
	emojiMatch = append(emojiMatch, bson.E{Key: "emojis.0", Value: bson.D{{Key: "$exists", Value: true}}})
	emojiRows, err := s.topUsers(ctx, s.messages, mongo.Pipeline{
		bson.D{{Key: "$match", Value: emojiMatch}},
		bson.D{{Key: "$unwind", Value: "$emojis"}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$user_id"},
			{Key: "value", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return boards, fmt.Errorf("failed to aggregate emoji leaderboard: %w", err)
	}

	reactionMatch := bson.D{
		{Key: "guild_id", Value: guildID},
		{Key: "action", Value: ReactionAdd},
	}
	if rng := dateRange(start, end); rng != nil {
		reactionMatch = append(reactionMatch, bson.E{Key: "created_at", Value: rng})
	}
	reactionRows, err := s.topUsers(ctx, s.reactions, mongo.Pipeline{
		bson.D{{Key: "$match", Value: reactionMatch}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$user_id"},
			{Key: "value", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return boards, fmt.Errorf("failed to aggregate reaction leaderboard: %w", err)
	}

	usernames, err := s.resolveUsernames(ctx, voiceRows, messageRows, emojiRows, reactionRows)
	if err != nil {
		return boards, err
	}

	boards.VoiceTime = toEntries(voiceRows, usernames)
	boards.Messages = toEntries(messageRows, usernames)
	boards.Emojis = toEntries(emojiRows, usernames)
	boards.Reactions = toEntries(reactionRows, usernames)
	return boards, nil
}

// boardRow is one grouped aggregation result keyed by user ID.
type boardRow struct {
	UserID string `bson:"_id"`
	Value  int64  `bson:"value"`
}

// topUsers runs a grouping pipeline and appends the shared descending
// sort and top-5 limit stages.
func (s *Store) topUsers(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) ([]boardRow, error) {
	pipeline = append(pipeline,
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "value", Value: -1},
			{Key: "_id", Value: 1},
		}}},
		bson.D{{Key: "$limit", Value: leaderboardSize}},
	)

	var rows []boardRow
	if err := s.aggregate(ctx, coll, pipeline, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// resolveUsernames fetches usernames for every user appearing on any
// board with a single $in query.
func (s *Store) resolveUsernames(ctx context.Context, boards ...[]boardRow) (map[string]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, rows := range boards {
		for _, row := range rows {
			if _, ok := seen[row.UserID]; !ok {
				seen[row.UserID] = struct{}{}
				ids = append(ids, row.UserID)
			}
		}
	}

	usernames := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return usernames, nil
	}

	cursor, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve usernames: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	for _, u := range users {
		usernames[u.ID] = u.Username
	}
	return usernames, nil
}

func toEntries(rows []boardRow, usernames map[string]string) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		username, ok := usernames[row.UserID]
		if !ok {
			username = UnknownUsername
		}
		entries = append(entries, models.LeaderboardEntry{
			UserID:   row.UserID,
			Username: username,
			Value:    row.Value,
		})
	}
	return entries
}

// dateRange builds an inclusive $gte/$lte filter, or nil when both bounds
// are open.
func dateRange(start, end *time.Time) bson.D {
	if start == nil && end == nil {
		return nil
	}
	rng := bson.D{}
	if start != nil {
		rng = append(rng, bson.E{Key: "$gte", Value: *start})
	}
	if end != nil {
		rng = append(rng, bson.E{Key: "$lte", Value: *end})
	}
	return rng
}

func (s *Store) aggregate(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline, results any) error {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, results)
}
