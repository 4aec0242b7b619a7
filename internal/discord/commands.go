package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"graig/internal/meme"
	"graig/pkg/utils"
)

const (
	maxAutocompleteChoices = 25
	maxListedTemplates     = 20
)

var commandDefinitions = []*discordgo.ApplicationCommand{
	{
		Name:        "stats",
		Description: "View your activity stats in this server",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "User to view stats for (defaults to yourself)",
			},
		},
	},
	{
		Name:        "leaderboard",
		Description: "View server activity leaderboards",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "period",
				Description: "Time period to show stats for (default: 7d)",
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Last 24 Hours", Value: "1d"},
					{Name: "Last 7 Days", Value: "7d"},
					{Name: "Last 30 Days", Value: "30d"},
					{Name: "All Time", Value: "all"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "start_date",
				Description: "Custom start date (YYYY-MM-DD format)",
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "end_date",
				Description: "Custom end date (YYYY-MM-DD format)",
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "guild_id",
				Description: "Guild ID (required for DM usage by admins)",
			},
		},
	},
	{
		Name:        "meme",
		Description: "Generate a custom meme",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "template",
				Description:  "The meme template to use (e.g. drake, distracted-boyfriend)",
				Required:     true,
				Autocomplete: true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "top_text",
				Description: "Text for the top of the meme",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "bottom_text",
				Description: "Text for the bottom of the meme (optional)",
			},
		},
	},
	{
		Name:        "randommeme",
		Description: "Get a random meme from Reddit",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "subreddit",
				Description: "Subreddit to fetch from (optional)",
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "memes", Value: "memes"},
					{Name: "dankmemes", Value: "dankmemes"},
					{Name: "me_irl", Value: "me_irl"},
					{Name: "wholesomememes", Value: "wholesomememes"},
				},
			},
		},
	},
	{
		Name:        "memetemplates",
		Description: "List available meme templates",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "search",
				Description: "Search for templates by name (optional)",
			},
		},
	},
}

func (b *Bot) registerCommands(s *discordgo.Session) error {
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, "", commandDefinitions)
	if err != nil {
		return fmt.Errorf("failed to overwrite application commands: %w", err)
	}
	return nil
}

func (b *Bot) interactionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		switch i.ApplicationCommandData().Name {
		case "stats":
			b.handleStats(s, i)
		case "leaderboard":
			b.handleLeaderboard(s, i)
		case "meme":
			b.handleMeme(s, i)
		case "randommeme":
			b.handleRandomMeme(s, i)
		case "memetemplates":
			b.handleMemeTemplates(s, i)
		}
	case discordgo.InteractionApplicationCommandAutocomplete:
		if i.ApplicationCommandData().Name == "meme" {
			b.handleMemeAutocomplete(s, i)
		}
	}
}

func (b *Bot) handleStats(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		b.respondEphemeral(s, i, "This command can only be used in a server.")
		return
	}

	target := interactionUser(i)
	displayName := userDisplayName(target)
	if i.Member != nil && i.Member.Nick != "" {
		displayName = i.Member.Nick
	}
	if opt, ok := optionMap(i)["user"]; ok {
		target = opt.UserValue(s)
		displayName = userDisplayName(target)
	}

	ctx := context.Background()

	voice, err := b.store.VoiceStats(ctx, target.ID, i.GuildID)
	if err != nil {
		b.logger.Error("failed to fetch voice stats", "user_id", target.ID, "error", err)
		b.respondEphemeral(s, i, "Failed to fetch stats. Please try again later.")
		return
	}
	messages, err := b.store.MessageStats(ctx, target.ID, i.GuildID)
	if err != nil {
		b.logger.Error("failed to fetch message stats", "user_id", target.ID, "error", err)
		b.respondEphemeral(s, i, "Failed to fetch stats. Please try again later.")
		return
	}
	reactions, err := b.store.ReactionStats(ctx, target.ID, i.GuildID)
	if err != nil {
		b.logger.Error("failed to fetch reaction stats", "user_id", target.ID, "error", err)
		b.respondEphemeral(s, i, "Failed to fetch stats. Please try again later.")
		return
	}
	first, err := b.store.FirstActivity(ctx, target.ID, i.GuildID)
	if err != nil {
		b.logger.Error("failed to fetch first activity", "user_id", target.ID, "error", err)
		b.respondEphemeral(s, i, "Failed to fetch stats. Please try again later.")
		return
	}

	embed := statsEmbed(displayName, target.AvatarURL(""), b.guildName(s, i.GuildID), voice, messages, reactions, first)
	b.respondEmbed(s, i, embed)
}

func (b *Bot) handleLeaderboard(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	isAdmin := b.cfg.IsAdmin(interactionUser(i).ID)

	var targetGuildID, guildName string
	switch {
	case i.GuildID != "":
		// In a guild the guild_id option is ignored.
		targetGuildID = i.GuildID
		guildName = b.guildName(s, i.GuildID)
	case isAdmin && optionString(opts, "guild_id") != "":
		targetGuildID = optionString(opts, "guild_id")
		guildName = b.guildName(s, targetGuildID)
	case isAdmin:
		b.respondEphemeral(s, i, "Please provide a `guild_id` when using this command in DMs.")
		return
	default:
		b.respondEphemeral(s, i, "This command can only be used in a server.")
		return
	}

	now := time.Now().UTC()
	start, end, periodLabel, err := leaderboardRange(
		optionString(opts, "period"),
		optionString(opts, "start_date"),
		optionString(opts, "end_date"),
		now,
	)
	if err != nil {
		b.respondEphemeral(s, i, "Invalid date format. Please use YYYY-MM-DD.")
		return
	}

	if err := b.deferResponse(s, i); err != nil {
		b.logger.Error("failed to defer leaderboard response", "error", err)
		return
	}

	boards, err := b.store.GuildLeaderboards(context.Background(), targetGuildID, start, end)
	if err != nil {
		b.logger.Error("failed to fetch leaderboards", "guild_id", targetGuildID, "error", err)
		b.followupEphemeral(s, i, "Failed to fetch the leaderboard. Please try again later.")
		return
	}

	if boards.IsEmpty() {
		b.followupEphemeral(s, i, fmt.Sprintf(
			"No activity data found for **%s** in the selected time period.", guildName))
		return
	}

	embed := leaderboardEmbed(guildName, periodLabel, boards, start, end, now)
	b.followupEmbed(s, i, embed)
}

func (b *Bot) handleMeme(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	template := optionString(opts, "template")
	topText := optionString(opts, "top_text")
	bottomText := optionString(opts, "bottom_text")

	embed := &discordgo.MessageEmbed{
		Color:  colorGreen,
		Image:  &discordgo.MessageEmbedImage{URL: b.memes.BuildURL(template, topText, bottomText)},
		Footer: &discordgo.MessageEmbedFooter{Text: "Template: " + template},
	}
	b.respondEmbed(s, i, embed)
}

func (b *Bot) handleMemeAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var current string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "template" && opt.Focused {
			current = opt.StringValue()
		}
	}

	ctx := context.Background()
	var templates []meme.Template
	var err error
	if current != "" {
		templates, err = b.memes.SearchTemplates(ctx, current)
	} else {
		templates, err = b.memes.Templates(ctx, false)
	}
	if err != nil {
		b.logger.Error("failed to fetch meme templates for autocomplete", "error", err)
	}

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, maxAutocompleteChoices)
	for _, t := range templates {
		if len(choices) == maxAutocompleteChoices {
			break
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  utils.TruncateString(t.Name, 100),
			Value: t.ID,
		})
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err != nil {
		b.logger.Error("failed to respond to autocomplete", "error", err)
	}
}

func (b *Bot) handleRandomMeme(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := b.deferResponse(s, i); err != nil {
		b.logger.Error("failed to defer random meme response", "error", err)
		return
	}

	subreddit := optionString(optionMap(i), "subreddit")

	m, err := b.memes.RandomMeme(context.Background(), subreddit)
	if err != nil {
		b.logger.Error("failed to fetch random meme", "error", err)
		m = nil
	}
	if m == nil {
		b.followupEphemeral(s, i, "Failed to fetch a meme. Please try again later.")
		return
	}

	title := m.Title
	if title == "" {
		title = "Random Meme"
	}
	embed := &discordgo.MessageEmbed{
		Title:  title,
		URL:    m.PostLink,
		Color:  colorOrange,
		Image:  &discordgo.MessageEmbedImage{URL: m.URL},
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("r/%s | u/%s", m.Subreddit, m.Author)},
	}
	b.followupEmbed(s, i, embed)
}

func (b *Bot) handleMemeTemplates(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := b.deferResponse(s, i); err != nil {
		b.logger.Error("failed to defer template list response", "error", err)
		return
	}

	search := optionString(optionMap(i), "search")

	ctx := context.Background()
	var templates []meme.Template
	var err error
	if search != "" {
		templates, err = b.memes.SearchTemplates(ctx, search)
	} else {
		templates, err = b.memes.Templates(ctx, false)
	}
	if err != nil {
		b.logger.Error("failed to fetch meme templates", "error", err)
	}

	if len(templates) == 0 {
		msg := "Failed to fetch templates."
		if search != "" {
			msg = "No templates found."
		}
		b.followupEphemeral(s, i, msg)
		return
	}

	shown := len(templates)
	if shown > maxListedTemplates {
		shown = maxListedTemplates
	}
	lines := make([]string, 0, shown)
	for _, t := range templates[:shown] {
		lines = append(lines, fmt.Sprintf("**%s** (`%s`)", t.Name, t.ID))
	}

	title := "Meme Templates"
	if search != "" {
		title += fmt.Sprintf(" matching '%s'", search)
	}
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: strings.Join(lines, "\n"),
		Color:       colorBlue,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Showing %d of %d templates", shown, len(templates)),
		},
	}
	b.followupEmbed(s, i, embed)
}

// leaderboardRange resolves the period/date options into an inclusive
// [start, end] range and a human-readable label. Custom dates take
// precedence over the preset period; a date-only end bound is widened to
// the end of that day.
func leaderboardRange(period, startDate, endDate string, now time.Time) (start, end *time.Time, label string, err error) {
	if startDate != "" || endDate != "" {
		if startDate != "" {
			t, perr := time.Parse("2006-01-02", startDate)
			if perr != nil {
				return nil, nil, "", fmt.Errorf("invalid start date %q: %w", startDate, perr)
			}
			start = &t
		}
		if endDate != "" {
			t, perr := time.Parse("2006-01-02", endDate)
			if perr != nil {
				return nil, nil, "", fmt.Errorf("invalid end date %q: %w", endDate, perr)
			}
			t = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
			end = &t
		}

		switch {
		case start != nil && end != nil:
			label = fmt.Sprintf("%s - %s", start.Format("Jan 02"), end.Format("Jan 02, 2006"))
		case start != nil:
			label = "Since " + start.Format("Jan 02, 2006")
		default:
			label = "Until " + end.Format("Jan 02, 2006")
		}
		return start, end, label, nil
	}

	switch period {
	case "1d":
		t := now.Add(-24 * time.Hour)
		return &t, nil, "Last 24 Hours", nil
	case "30d":
		t := now.AddDate(0, 0, -30)
		return &t, nil, "Last 30 Days", nil
	case "all":
		return nil, nil, "All Time", nil
	default: // 7d
		t := now.AddDate(0, 0, -7)
		return &t, nil, "Last 7 Days", nil
	}
}

// interactionUser returns the invoking user for both guild and DM
// interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func optionString(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := opts[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func (b *Bot) guildName(s *discordgo.Session, guildID string) string {
	if g, err := s.State.Guild(guildID); err == nil && g.Name != "" {
		return g.Name
	}
	if g, err := s.Guild(guildID); err == nil && g.Name != "" {
		return g.Name
	}
	return "Guild " + guildID
}

func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Error("failed to send ephemeral response", "error", err)
	}
}

func (b *Bot) respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
	if err != nil {
		b.logger.Error("failed to send embed response", "error", err)
	}
}

func (b *Bot) deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func (b *Bot) followupEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		b.logger.Error("failed to send ephemeral followup", "error", err)
	}
}

func (b *Bot) followupEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		b.logger.Error("failed to send embed followup", "error", err)
	}
}
