// One-shot tool: print the current clock state. With -addr it queries a
// running tradeclock-server; without it the state is computed locally from
// the config file.
//
// Usage:
//
//	go run cmd/tradeclock-now/main.go [-addr http://localhost:8080] [-at RFC3339]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"tradeclock/internal/calendar"
	"tradeclock/internal/config"
	"tradeclock/internal/hands"
	"tradeclock/internal/session"
	"tradeclock/internal/util"
	"tradeclock/pkg/tradeclock"
)

func main() {
	addr := flag.String("addr", "", "tradeclock-server base URL; empty computes locally")
	at := flag.String("at", "", "instant to resolve (RFC3339); default now")
	flag.Parse()

	if *addr != "" {
		printRemote(*addr)
		return
	}

	cfgPath := "config/tradeclock.yaml"
	if p := os.Getenv("TRADECLOCK_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger := util.NewLogger("warn", cfg.Logging.Format)

	resolver := session.NewResolver(cfg.Clock.DomainSessions(), cfg.Clock.Timezone, logger)
	now := time.Now().In(resolver.Location())
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			log.Fatalf("parsing -at: %v", err)
		}
		now = t.In(resolver.Location())
	}

	a := hands.Compute(now)
	fmt.Printf("%s  (%s, day %s)\n", now.Format("2006-01-02 15:04:05 MST"),
		cfg.Clock.Timezone, calendar.DayKey(now, resolver.Location()))
	fmt.Printf("hands: hour %.1f° minute %.1f° second %.1f°\n", a.Hour, a.Minute, a.Second)

	snap := resolver.Resolve(now)
	if snap.Active != nil {
		fmt.Printf("active: %s until %s", snap.Active.Session.Name,
			snap.Active.End.Format("15:04"))
		if snap.TimeToEnd != nil {
			fmt.Printf(" (%s left)", secondsDuration(*snap.TimeToEnd))
		}
		fmt.Println()
	}
	if snap.Next != nil {
		fmt.Printf("next: %s at %s", snap.Next.Session.Name,
			snap.Next.Start.Format("2006-01-02 15:04"))
		if snap.TimeToStart != nil {
			fmt.Printf(" (in %s)", secondsDuration(*snap.TimeToStart))
		}
		fmt.Println()
	}
	if snap.Active == nil && snap.Next == nil {
		fmt.Println("no sessions configured")
	}
}

func printRemote(addr string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	state, err := tradeclock.NewClient(addr).Clock(ctx)
	if err != nil {
		log.Fatalf("querying %s: %v", addr, err)
	}

	fmt.Printf("%s  (%s, day %s", state.Time, state.Timezone, state.DayKey)
	if !state.TradingDay {
		fmt.Printf(", market closed")
	}
	fmt.Println(")")
	fmt.Printf("hands: hour %.1f° minute %.1f° second %.1f° (snaps %d, resume token %d)\n",
		state.Hands.Hour, state.Hands.Minute, state.Hands.Second,
		state.Hands.Snaps, state.ResumeToken)

	if s := state.Session.Active; s != nil {
		fmt.Printf("active: %s until %s\n", s.Name, s.End)
	}
	if s := state.Session.Next; s != nil {
		fmt.Printf("next: %s at %s\n", s.Name, s.Start)
	}
	if ev := state.NextEvent; ev != nil {
		fmt.Printf("next event: %s in %s\n", ev.Name, state.NextCountdown)
	}
}

func secondsDuration(s int64) time.Duration {
	return time.Duration(s) * time.Second
}
