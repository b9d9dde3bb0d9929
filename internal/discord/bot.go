package discord

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/chris/mochi/config"
	"github.com/chris/mochi/internal/scheduler"
	"github.com/chris/mochi/internal/state"
)

type Bot struct {
	session *discordgo.Session
	store   *state.Store
	cfg     *config.Config
	sched   *scheduler.Scheduler
}

// NewBot builds the session and registers handlers but does not connect;
// Start wires in the scheduler and opens, so the two can reference each
// other (the scheduler delivers through Send).
func NewBot(token string, store *state.Store, cfg *config.Config) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating Discord session: %w", err)
	}

	bot := &Bot{session: s, store: store, cfg: cfg}
	s.AddHandler(bot.onMessage)
	s.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsGuildMessages

	return bot, nil
}

func (b *Bot) Start(sched *scheduler.Scheduler) error {
	b.sched = sched
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening Discord connection: %w", err)
	}
	log.Printf("Discord bot connected as %s", b.session.State.User.Username)
	return nil
}

func (b *Bot) Close() {
	b.session.Close()
}

// Send delivers a notification to a channel, splitting at Discord's message
// size limit.
func (b *Bot) Send(chatID, text string) error {
	for _, chunk := range splitMessage(text, 2000) {
		if _, err := b.session.ChannelMessageSend(chatID, chunk); err != nil {
			return fmt.Errorf("sending to channel %s: %w", chatID, err)
		}
	}
	return nil
}
