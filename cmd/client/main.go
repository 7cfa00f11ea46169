package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"stonkroyale.gg/internal/config"
	"stonkroyale.gg/internal/game"
	"stonkroyale.gg/internal/persistence/journal"
	"stonkroyale.gg/internal/persistence/marketdb"
	"stonkroyale.gg/internal/transport/wsclient"
	"stonkroyale.gg/internal/wallet"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "path to client.yaml (optional)")
		url      = flag.String("url", "", "relay ws url (overrides config)")
		dataDir  = flag.String("data", "", "data directory (overrides config)")
		name     = flag.String("name", "", "display name to register automatically")
		password = flag.String("password", "", "keystore password (or STONK_KEYSTORE_PASSWORD)")
		admin    = flag.Bool("admin", false, "enable the restart command")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[client] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *url != "" {
		cfg.RelayURL = *url
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
		cfg.Journal.Dir = ""
		cfg.Archive.Path = ""
		cfg.Normalize()
	}
	if *name != "" {
		cfg.DisplayName = *name
	}
	if *admin {
		cfg.Admin = true
	}

	pw := *password
	if pw == "" {
		pw = os.Getenv("STONK_KEYSTORE_PASSWORD")
	}
	if pw == "" {
		pw = cfg.KeystorePassword
	}
	if pw == "" {
		logger.Fatalf("keystore password required (-password or STONK_KEYSTORE_PASSWORD)")
	}

	w, created, err := wallet.LoadOrCreate(cfg.DataDir, pw)
	if err != nil {
		logger.Fatalf("wallet: %v", err)
	}
	if created {
		logger.Printf("created wallet %s", w.Address())
	} else {
		logger.Printf("loaded wallet %s", w.Address())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	conn, err := wsclient.Dial(ctx, cfg.RelayURL, logger)
	if err != nil {
		logger.Fatalf("connect: %v", err)
	}
	defer conn.Close()
	logger.Printf("connected to %s", cfg.RelayURL)

	ecfg := game.EngineConfig{
		Signer: w,
		Send:   conn.Send,
		Logger: logger,
		Admin:  cfg.Admin,
	}
	if cfg.Journal.Enabled {
		j := journal.New(cfg.Journal.Dir, logger)
		defer j.Close()
		ecfg.Journal = j
	}
	if cfg.Archive.Enabled {
		db, err := marketdb.Open(cfg.Archive.Path)
		if err != nil {
			logger.Fatalf("market db: %v", err)
		}
		defer db.Close()
		ecfg.Archive = db
	}

	eng := game.NewEngine(ecfg)

	// Pump inbound frames; a closed connection ends the session.
	go func() {
		for f := range conn.Frames() {
			eng.Inbox() <- f
		}
		cancel()
	}()

	engDone := make(chan error, 1)
	go func() { engDone <- eng.Run(ctx) }()

	if cfg.DisplayName != "" {
		go autoRegister(ctx, eng, cfg.DisplayName)
	}

	go repl(ctx, eng, cancel)

	select {
	case <-ctx.Done():
	case err := <-engDone:
		if err != nil && ctx.Err() == nil {
			logger.Printf("engine: %v", err)
		}
	}
	if err := conn.Err(); err != nil {
		logger.Printf("disconnected: %v", err)
	}
}

// autoRegister submits the configured name once registration opens.
func autoRegister(ctx context.Context, eng *game.Engine, name string) {
	t := time.NewTicker(200 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		s, err := eng.Status(ctx)
		if err != nil {
			return
		}
		if s.Phase == game.PhaseNeedsToRegister {
			eng.Commands() <- game.Command{Kind: game.CmdSubmitName, Name: name}
			return
		}
		if s.DisplayName != "" {
			return
		}
	}
}

func repl(ctx context.Context, eng *game.Engine, quit func()) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "name":
			if len(fields) < 2 {
				fmt.Println("usage: name <display name>")
				continue
			}
			eng.Commands() <- game.Command{Kind: game.CmdSubmitName, Name: strings.Join(fields[1:], " ")}
		case "buy", "sell":
			if len(fields) != 2 {
				fmt.Printf("usage: %s <amount>\n", fields[0])
				continue
			}
			n, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				fmt.Println("amount must be a positive integer")
				continue
			}
			kind := game.CmdBuy
			if fields[0] == "sell" {
				kind = game.CmdSell
			}
			eng.Commands() <- game.Command{Kind: kind, Amount: n}
		case "status":
			s, err := eng.Status(ctx)
			if err != nil {
				return
			}
			printStatus(s)
		case "restart":
			eng.Commands() <- game.Command{Kind: game.CmdRestart}
		case "quit", "exit":
			quit()
			return
		default:
			fmt.Println("commands: name <n> | buy <n> | sell <n> | status | restart | quit")
		}
	}
	quit()
}

func printStatus(s game.Status) {
	fmt.Printf("phase=%s address=%s name=%q\n", s.Phase, s.Address, s.DisplayName)
	fmt.Printf("price=%d balance=%d holdings=%d funds=%d nonce=%d\n",
		s.Price, s.Portfolio.Balance, s.Portfolio.Holdings, s.Funds, s.Nonce)
	if s.Session != nil {
		fmt.Printf("blocks: current=%d start=%d end=%d", s.Session.CurrentHeight, s.Session.StartHeight, s.Session.EndHeight)
		if s.RemainingKnown {
			fmt.Printf(" remaining~%s", s.Remaining.Round(time.Second))
		}
		fmt.Println()
	}
	for i, row := range s.Leaderboard {
		fmt.Printf("%2d. %-16s net=%d balance=%d holdings=%d\n", i+1, row.Name, row.NetWorth, row.Balance, row.Holdings)
	}
}
