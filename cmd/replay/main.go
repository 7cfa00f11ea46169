package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"stonkroyale.gg/internal/game"
	"stonkroyale.gg/internal/persistence/journal"
	"stonkroyale.gg/internal/protocol"
)

// replay re-feeds a recorded session journal through a fresh state
// machine and prints every phase transition, ending with the final
// reconciled state. Outbound entries are only used to recover the
// local address; the machine consumes the inbound stream exactly as
// the live client did.
func main() {
	var (
		dir     = flag.String("journal", "", "journal directory containing session-*.jsonl.zst")
		address = flag.String("address", "", "local address (default: recovered from the journal)")
		verbose = flag.Bool("v", false, "print every decoded message")
	)
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "missing -journal")
		os.Exit(2)
	}

	self := *address
	if self == "" {
		var err error
		self, err = recoverAddress(*dir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "recover address:", err)
			os.Exit(1)
		}
	}

	m := game.NewMachine(self, func(s string) { fmt.Println("*", s) })
	m.Start()
	lastPhase := m.Phase().Name()

	var inbound, applied, dropped int
	err := journal.ReadDir(*dir, func(e journal.Entry) error {
		if e.Dir != journal.DirIn || len(e.Msg) == 0 {
			return nil
		}
		inbound++
		msg, err := protocol.Decode(e.Msg)
		if err != nil {
			dropped++
			return nil
		}
		if *verbose {
			fmt.Printf("%s %s\n", e.TS.Format("15:04:05.000"), msg.Tag())
		}
		m.Handle(msg)
		applied++
		if name := m.Phase().Name(); name != lastPhase {
			fmt.Printf("%s -> %s (after %d messages)\n", lastPhase, name, applied)
			lastPhase = name
		}
		return nil
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}

	fmt.Printf("replay ok: inbound=%d applied=%d dropped=%d\n", inbound, applied, dropped)
	printState(m)
}

var errFound = errors.New("found")

// recoverAddress scans for the first outbound get_nonce, which the
// client sends on startup with its own address.
func recoverAddress(dir string) (string, error) {
	var self string
	err := journal.ReadDir(dir, func(e journal.Entry) error {
		if e.Dir != journal.DirOut {
			return nil
		}
		var gn protocol.GetNonceMsg
		if err := json.Unmarshal(e.Msg, &gn); err != nil {
			return nil
		}
		if gn.Type == protocol.TypeGetNonce && gn.Address != "" {
			self = gn.Address
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", err
	}
	if self == "" {
		return "", fmt.Errorf("no outbound get_nonce in journal, pass -address")
	}
	return self, nil
}

func printState(m *game.Machine) {
	fmt.Printf("final phase: %s\n", m.Phase().Name())
	if port, ok := m.Ledger().Get(m.Self()); ok {
		fmt.Printf("self: balance=%d holdings=%d\n", port.Balance, port.Holdings)
	}
	fmt.Printf("price points: %d\n", m.Prices().Len())
	for _, addr := range m.Ledger().Addresses() {
		port, _ := m.Ledger().Get(addr)
		fmt.Printf("  %-16s %s balance=%d holdings=%d\n", m.Names().Get(addr), addr, port.Balance, port.Holdings)
	}
}
