package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/GustavoLR548/news-relay-bot/internal/logger"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// discordDescriptionLimit is the embed description limit.
const discordDescriptionLimit = 4096

// DiscordSender is the part of *discordgo.Session the publisher uses.
type DiscordSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordPublisher implements Publisher by posting embeds to one channel.
type DiscordPublisher struct {
	sender    DiscordSender
	channelID string
	log       *zap.SugaredLogger
}

// NewDiscordSession opens a bot session for token.
func NewDiscordSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds
	return dg, nil
}

// NewDiscordPublisher creates a publisher over sender.
func NewDiscordPublisher(sender DiscordSender, channelID string, log *zap.SugaredLogger) (*DiscordPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("discord sender is required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("discord channel ID is required")
	}
	return &DiscordPublisher{sender: sender, channelID: channelID, log: logger.OrNop(log)}, nil
}

// Publish converts caption to markdown and sends it as an embed with the image.
func (p *DiscordPublisher) Publish(ctx context.Context, caption, imageURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	description := ToDiscordMarkdown(caption)
	if runes := []rune(description); len(runes) > discordDescriptionLimit {
		description = string(runes[:discordDescriptionLimit-1]) + "…"
	}

	embed := &discordgo.MessageEmbed{
		Description: description,
		Color:       0x2B6CB0,
	}
	if strings.TrimSpace(imageURL) != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: imageURL}
	}

	if _, err := p.sender.ChannelMessageSendEmbed(p.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send message to channel %s: %w", p.channelID, err)
	}

	p.log.Infof("Published embed to Discord channel %s", p.channelID)
	return nil
}

// NotifyError sends message as plain content.
func (p *DiscordPublisher) NotifyError(ctx context.Context, message string) error {
	if _, err := p.sender.ChannelMessageSend(p.channelID, message, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send notice to channel %s: %w", p.channelID, err)
	}
	return nil
}
