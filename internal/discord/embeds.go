package discord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"graig/internal/models"
	"graig/pkg/utils"
)

// Embed colors matching the replies' tone.
const (
	colorBlurple = 0x5865F2
	colorGold    = 0xF1C40F
	colorGreen   = 0x2ECC71
	colorOrange  = 0xE67E22
	colorBlue    = 0x3498DB
)

// statsEmbed renders per-user activity stats as a single embed with one
// inline field per activity kind.
func statsEmbed(displayName, avatarURL, guildName string, voice models.VoiceStats, messages models.MessageStats, reactions models.ReactionStats, firstActivity *time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Stats for " + displayName,
		Description: fmt.Sprintf("Activity in **%s**", guildName),
		Color:       colorBlurple,
	}
	if avatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: avatarURL}
	}

	voiceValue := fmt.Sprintf("**%s** total\n**%d** sessions",
		utils.FormatDuration(voice.TotalSeconds), voice.SessionCount)
	if voice.FavoriteChannel != "" {
		voiceValue += "\n**Favorite:** " + voice.FavoriteChannel
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name: "🎤 Voice", Value: voiceValue, Inline: true,
	})

	messageValue := fmt.Sprintf("**%d** sent\n**%d** emojis used",
		messages.MessageCount, messages.TotalEmojis)
	if messages.TopEmoji != "" {
		messageValue += fmt.Sprintf("\n**Top:** %s (%dx)", messages.TopEmoji, messages.TopEmojiCount)
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name: "💬 Messages", Value: messageValue, Inline: true,
	})

	reactionValue := fmt.Sprintf("**%d** given\n**%d** removed",
		reactions.AddCount, reactions.RemoveCount)
	if reactions.TopReaction != "" {
		reactionValue += fmt.Sprintf("\n**Favorite:** %s (%dx)", reactions.TopReaction, reactions.TopReactionCount)
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name: "⭐ Reactions", Value: reactionValue, Inline: true,
	})

	footer := "No activity recorded yet"
	if firstActivity != nil {
		footer = "Tracking since " + firstActivity.Format("Jan 02, 2006")
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: footer}

	return embed
}

// leaderboardEmbed renders the four guild boards, skipping empty ones.
func leaderboardEmbed(guildName, periodLabel string, boards models.Leaderboards, start, end *time.Time, now time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Server Leaderboard (%s)", periodLabel),
		Description: fmt.Sprintf("Top activity in **%s**", guildName),
		Color:       colorGold,
	}

	if len(boards.VoiceTime) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "🎤 Voice Time",
			Value: boardLines(boards.VoiceTime, utils.FormatDuration),
		})
	}
	if len(boards.Messages) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "💬 Messages Sent",
			Value: boardLines(boards.Messages, formatCount),
		})
	}
	if len(boards.Emojis) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "😀 Emojis Used",
			Value: boardLines(boards.Emojis, formatCount),
		})
	}
	if len(boards.Reactions) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "⭐ Reactions Given",
			Value: boardLines(boards.Reactions, formatCount),
		})
	}

	embed.Footer = &discordgo.MessageEmbedFooter{Text: rangeFooter(start, end, now)}
	return embed
}

// boardLines formats ranked entries, one per line, medals for the top 3.
func boardLines(entries []models.LeaderboardEntry, format func(int64) string) string {
	lines := make([]string, 0, len(entries))
	for idx, e := range entries {
		lines = append(lines, utils.FormatLeaderboardEntry(
			idx+1, utils.FormatUserMention(e.UserID), format(e.Value)))
	}
	return strings.Join(lines, "\n")
}

func formatCount(n int64) string {
	return strconv.FormatInt(n, 10)
}

func rangeFooter(start, end *time.Time, now time.Time) string {
	switch {
	case start != nil && end != nil:
		return fmt.Sprintf("Data from %s - %s", start.Format("Jan 02"), end.Format("Jan 02, 2006"))
	case start != nil:
		return fmt.Sprintf("Data from %s - %s", start.Format("Jan 02, 2006"), now.Format("Jan 02, 2006"))
	case end != nil:
		return "Data until " + end.Format("Jan 02, 2006")
	default:
		return "All recorded data"
	}
}
