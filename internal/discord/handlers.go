package discord

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/chris/mochi/internal/care"
	"github.com/chris/mochi/internal/scheduler"
)

var jokes = []string{
	"Why are computers so good at singing? They have tons of memory!",
	"Why don't cats shop online? They can never catch the mouse.",
	"What did one cat say to the other? You've got to be kitten me.",
	"Why do programmers love summer? Perfect short-circuit weather!",
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore own messages
	if m.Author.ID == s.State.User.ID {
		return
	}

	// Only respond to DMs or when mentioned
	isDM := m.GuildID == ""
	isMentioned := false
	for _, u := range m.Mentions {
		if u.ID == s.State.User.ID {
			isMentioned = true
			break
		}
	}
	if !isDM && !isMentioned {
		return
	}

	content := strings.TrimSpace(stripMention(m.Content, s.State.User.ID))
	if content == "" {
		return
	}

	reply := b.handleCommand(m.ChannelID, m.Author.ID, content, time.Now().UTC())
	for _, chunk := range splitMessage(reply, 2000) {
		if _, err := s.ChannelMessageSend(m.ChannelID, chunk); err != nil {
			log.Printf("replying in channel %s: %v", m.ChannelID, err)
		}
	}
}

// handleCommand parses one user message and returns the reply text. It is the
// whole command surface of the bot; everything stateful goes through the
// store and the scheduler.
func (b *Bot) handleCommand(chatID, userID, content string, now time.Time) string {
	word, rest, _ := strings.Cut(content, " ")
	cmd := strings.ToLower(strings.TrimLeft(word, "/!"))
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "feed", "drink", "sleep":
		return b.handleCare(care.Kind(cmd), chatID, userID, now)
	case "status":
		return b.handleStatus()
	case "remind":
		return b.handleRemind(chatID, rest, now)
	case "joke":
		return jokes[rand.Intn(len(jokes))]
	case "help":
		return "Commands:\n" +
			"/feed - feed " + b.cfg.PetName + "\n" +
			"/drink - give " + b.cfg.PetName + " water\n" +
			"/sleep - put " + b.cfg.PetName + " to bed\n" +
			"/status - when everything last happened\n" +
			"/remind HH:MM <text> - one-shot reminder (UTC)\n" +
			"/joke - random joke"
	}

	switch strings.ToLower(word) {
	case "hi", "hello", "hey":
		return fmt.Sprintf("Hi! I'm %s. Want to feed me? Try /feed /drink /sleep", b.cfg.PetName)
	}
	return "Not sure what you mean, but /help lists everything I know!"
}

func (b *Bot) handleCare(kind care.Kind, chatID, userID string, now time.Time) string {
	if err := b.store.RecordAction(kind, chatID, userID, now); err != nil {
		log.Printf("recording %s: %v", kind, err)
		return "Something went wrong saving that. Try again?"
	}
	switch kind {
	case care.Feed:
		return fmt.Sprintf("You fed %s! Every last bite devoured 🍽️", b.cfg.PetName)
	case care.Drink:
		return fmt.Sprintf("You gave %s water! Glug glug glug 💧", b.cfg.PetName)
	default:
		return fmt.Sprintf("%s curled up for a nap... sweet dreams 😴", b.cfg.PetName)
	}
}

func (b *Bot) handleStatus() string {
	snap := b.store.Snapshot()
	return fmt.Sprintf("%s's status:\nLast feed: %s\nLast drink: %s\nLast sleep: %s",
		b.cfg.PetName,
		fmtLast(snap.LastFeed),
		fmtLast(snap.LastDrink),
		fmtLast(snap.LastSleep))
}

func (b *Bot) handleRemind(chatID, args string, now time.Time) string {
	clock, content, _ := strings.Cut(args, " ")
	content = strings.TrimSpace(content)
	if clock == "" || content == "" {
		return "Usage: /remind HH:MM <what to remind you about>"
	}

	r, err := b.sched.ScheduleOneShot(clock, content, chatID, now)
	if errors.Is(err, scheduler.ErrBadTime) {
		return "That time didn't parse. Use HH:MM in 24-hour form, e.g. /remind 21:30 take out trash"
	}
	if err != nil {
		log.Printf("scheduling reminder: %v", err)
		return "Something went wrong saving that reminder. Try again?"
	}
	return fmt.Sprintf("Reminder %s set: %s\nFires at (UTC): %s", r.ID, content, r.RunAt.Format("2006-01-02 15:04"))
}

func fmtLast(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format("2006-01-02 15:04:05")
}

func stripMention(s, userID string) string {
	s = strings.ReplaceAll(s, "<@"+userID+">", "")
	s = strings.ReplaceAll(s, "<@!"+userID+">", "")
	return s
}

func splitMessage(s string, maxLen int) []string {
	if len(s) <= maxLen {
		return []string{s}
	}
	var chunks []string
	for len(s) > 0 {
		end := maxLen
		if end > len(s) {
			end = len(s)
		}
		// Try to split at a newline
		if idx := strings.LastIndex(s[:end], "\n"); idx > 0 {
			end = idx + 1
		}
		chunks = append(chunks, s[:end])
		s = s[end:]
	}
	return chunks
}
