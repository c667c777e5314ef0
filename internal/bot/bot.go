package bot

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/clambin/zoned/internal/controller"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

// Bot is the Slack command surface: each slash command is answered with an
// attachment built from the controllers' published statuses.
type Bot struct {
	SlackApp
	manager Manager
	logger  *slog.Logger
}

// Manager is the part of the controller manager the bot drives.
type Manager interface {
	Pause(ctx context.Context, name string) error
	Resume(ctx context.Context, name string) error
	Recalculate(ctx context.Context, name string) error
	Set(ctx context.Context, name, setting, value string) error
	Status(name string) (*controller.Status, error)
	Statuses() []*controller.Status
}

type SlackApp interface {
	AddSlashCommand(string, func(slack.SlashCommand, *socketmode.Client))
	Run(ctx context.Context) error
}

func New(app SlackApp, manager Manager, logger *slog.Logger) *Bot {
	b := Bot{
		SlackApp: app,
		manager:  manager,
		logger:   logger,
	}

	b.SlackApp.AddSlashCommand("/pause", b.doAndPost(b.onPause))
	b.SlackApp.AddSlashCommand("/resume", b.doAndPost(b.onResume))
	b.SlackApp.AddSlashCommand("/recalculate", b.doAndPost(b.onRecalculate))
	b.SlackApp.AddSlashCommand("/rooms", b.doAndPost(b.onRooms))
	b.SlackApp.AddSlashCommand("/vents", b.doAndPost(b.onVents))
	b.SlackApp.AddSlashCommand("/status", b.doAndPost(b.onStatus))
	b.SlackApp.AddSlashCommand("/set", b.doAndPost(b.onSet))

	return &b
}

func (b *Bot) Run(ctx context.Context) error {
	b.logger.Debug("started")
	defer b.logger.Debug("stopped")
	if err := b.SlackApp.Run(ctx); err != nil {
		return fmt.Errorf("bot: %w", err)
	}
	return nil
}

func (b *Bot) doAndPost(f func(context.Context, ...string) slack.Attachment) func(cmd slack.SlashCommand, c *socketmode.Client) {
	return func(cmd slack.SlashCommand, c *socketmode.Client) {
		a := f(context.Background(), tokenizeText(cmd.Text)...)
		if _, _, err := c.PostMessage(cmd.ChannelID, slack.MsgOptionAttachments(a)); err != nil {
			b.logger.Error("failed to post response", "err", err)
		}
	}
}

func tokenizeText(input string) []string {
	cleanInput := input
	for _, quote := range []string{"“", "”", "'"} {
		cleanInput = strings.ReplaceAll(cleanInput, quote, "\"")
	}
	r := regexp.MustCompile(`[^\s"]+|"([^"]*)"`)
	output := r.FindAllString(cleanInput, -1)

	for index, word := range output {
		output[index] = strings.Trim(word, "\"")
	}
	return output
}
