package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"graig/internal/config"
	"graig/internal/database"
	"graig/internal/meme"
	"graig/pkg/utils"
)

// Bot wires the Discord gateway to the activity store and meme client.
type Bot struct {
	session *discordgo.Session
	store   *database.Store
	memes   *meme.Client
	cfg     *config.Config
	logger  *slog.Logger
}

// New creates the Discord bot and registers its gateway handlers.
func New(cfg *config.Config, store *database.Store, memes *meme.Client, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessageReactions

	bot := &Bot{
		session: session,
		store:   store,
		memes:   memes,
		cfg:     cfg,
		logger:  logger,
	}

	// Gateway event handlers
	session.AddHandler(bot.ready)
	session.AddHandler(bot.voiceStateUpdate)
	session.AddHandler(bot.messageCreate)
	session.AddHandler(bot.reactionAdd)
	session.AddHandler(bot.reactionRemove)
	session.AddHandler(bot.interactionCreate)

	return bot, nil
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) ready(s *discordgo.Session, r *discordgo.Ready) {
	if err := b.registerCommands(s); err != nil {
		b.logger.Error("failed to register slash commands", "error", err)
	}
	b.logger.Info("logged in", "user", r.User.Username)
}

// voiceStateUpdate classifies a voice state change as a join, leave or
// channel switch and records it. A switch closes the old session and
// opens a new one as two sequential writes; a racing duplicate event for
// the same user may briefly observe two open sessions.
func (b *Bot) voiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.GuildID == "" {
		return
	}

	ctx := context.Background()

	if name := b.memberDisplayName(s, vs.GuildID, vs.UserID); name != "" {
		if err := b.store.UpsertUser(ctx, vs.UserID, name); err != nil {
			b.logger.Error("failed to upsert user", "user_id", vs.UserID, "error", err)
		}
	}

	var beforeChannel string
	if vs.BeforeUpdate != nil {
		beforeChannel = vs.BeforeUpdate.ChannelID
	}

	switch {
	case beforeChannel == "" && vs.ChannelID != "":
		channelName := b.channelName(s, vs.ChannelID)
		b.logger.Debug("voice join", "user_id", vs.UserID, "channel", channelName)
		if err := b.store.StartVoiceSession(ctx, vs.UserID, vs.GuildID, vs.ChannelID, channelName); err != nil {
			b.logger.Error("failed to start voice session", "user_id", vs.UserID, "error", err)
		}

	case beforeChannel != "" && vs.ChannelID == "":
		b.logger.Debug("voice leave", "user_id", vs.UserID)
		if err := b.store.EndVoiceSession(ctx, vs.UserID, vs.GuildID); err != nil {
			b.logger.Error("failed to end voice session", "user_id", vs.UserID, "error", err)
		}

	case beforeChannel != "" && vs.ChannelID != "" && beforeChannel != vs.ChannelID:
		channelName := b.channelName(s, vs.ChannelID)
		b.logger.Debug("voice switch", "user_id", vs.UserID, "channel", channelName)
		if err := b.store.EndVoiceSession(ctx, vs.UserID, vs.GuildID); err != nil {
			b.logger.Error("failed to end voice session", "user_id", vs.UserID, "error", err)
		}
		if err := b.store.StartVoiceSession(ctx, vs.UserID, vs.GuildID, vs.ChannelID, channelName); err != nil {
			b.logger.Error("failed to start voice session", "user_id", vs.UserID, "error", err)
		}
	}
}

// messageCreate records guild messages along with any emojis used.
func (b *Bot) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	ctx := context.Background()

	name := userDisplayName(m.Author)
	if m.Member != nil && m.Member.Nick != "" {
		name = m.Member.Nick
	}
	if err := b.store.UpsertUser(ctx, m.Author.ID, name); err != nil {
		b.logger.Error("failed to upsert user", "user_id", m.Author.ID, "error", err)
	}

	emojis := utils.ExtractEmojis(m.Content)
	if err := b.store.RecordMessage(ctx, m.Author.ID, m.GuildID, m.ChannelID, m.ID, emojis); err != nil {
		b.logger.Error("failed to record message", "user_id", m.Author.ID, "error", err)
	}
}

func (b *Bot) reactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.GuildID == "" {
		return
	}

	ctx := context.Background()

	if r.Member != nil && r.Member.User != nil {
		name := userDisplayName(r.Member.User)
		if r.Member.Nick != "" {
			name = r.Member.Nick
		}
		if err := b.store.UpsertUser(ctx, r.UserID, name); err != nil {
			b.logger.Error("failed to upsert user", "user_id", r.UserID, "error", err)
		}
	}

	emoji := r.Emoji.MessageFormat()
	if err := b.store.RecordReaction(ctx, r.UserID, r.GuildID, r.ChannelID, r.MessageID, emoji, database.ReactionAdd); err != nil {
		b.logger.Error("failed to record reaction add", "user_id", r.UserID, "error", err)
	}
}

func (b *Bot) reactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	if r.GuildID == "" {
		return
	}

	emoji := r.Emoji.MessageFormat()
	if err := b.store.RecordReaction(context.Background(), r.UserID, r.GuildID, r.ChannelID, r.MessageID, emoji, database.ReactionRemove); err != nil {
		b.logger.Error("failed to record reaction remove", "user_id", r.UserID, "error", err)
	}
}

// channelName resolves a channel name from the state cache, falling back
// to a REST lookup and finally to the raw ID.
func (b *Bot) channelName(s *discordgo.Session, channelID string) string {
	if ch, err := s.State.Channel(channelID); err == nil {
		return ch.Name
	}
	if ch, err := s.Channel(channelID); err == nil {
		return ch.Name
	}
	return channelID
}

// memberDisplayName resolves the display name of a guild member, or ""
// when the member cannot be found.
func (b *Bot) memberDisplayName(s *discordgo.Session, guildID, userID string) string {
	member, err := s.State.Member(guildID, userID)
	if err != nil {
		member, err = s.GuildMember(guildID, userID)
		if err != nil {
			return ""
		}
	}
	if member.Nick != "" {
		return member.Nick
	}
	if member.User == nil {
		return ""
	}
	return userDisplayName(member.User)
}

// userDisplayName prefers the global display name over the account name.
func userDisplayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
