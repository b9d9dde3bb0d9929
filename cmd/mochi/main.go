package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/chris/mochi/config"
	"github.com/chris/mochi/internal/discord"
	"github.com/chris/mochi/internal/scheduler"
	"github.com/chris/mochi/internal/state"
)

func main() {
	cfg := config.Load()
	if cfg.DiscordToken == "" {
		log.Fatal("DISCORD_BOT_TOKEN must be set")
	}

	store, err := state.Open(cfg.StatePath)
	if err != nil {
		log.Fatalf("failed to open state: %v", err)
	}

	bot, err := discord.NewBot(cfg.DiscordToken, store, cfg)
	if err != nil {
		log.Fatalf("failed to create Discord bot: %v", err)
	}

	sched := scheduler.New(store, scheduler.Options{
		Thresholds:     cfg.Thresholds(),
		CheckInterval:  cfg.CheckInterval,
		NotifyCooldown: cfg.NotifyCooldown,
	}, bot.Send)

	if err := bot.Start(sched); err != nil {
		log.Fatalf("failed to start Discord bot: %v", err)
	}
	defer bot.Close()

	sched.Start()
	defer sched.Stop()

	log.Println("bot is running. Press Ctrl+C to exit.")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down.")
}
