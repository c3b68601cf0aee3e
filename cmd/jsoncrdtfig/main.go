// Command jsoncrdtfig is a demonstration CLI for the jsoncrdt engine:
// it drives the convergence scenarios described below, and shows the
// transport, snapshot, and search domain-stack packages operating
// against a live pkg/engine.Engine. It has no production role — the
// "command-line figure generator" is explicitly an external
// collaborator of the core engine, not part of it — so this
// stays a thin wrapper over pkg/engine's public surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amaydixit11/jsoncrdt/internal/security"
	"github.com/amaydixit11/jsoncrdt/internal/snapshot"
	"github.com/amaydixit11/jsoncrdt/pkg/engine"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "scenarios":
		cmdScenarios(args)
	case "snapshot":
		cmdSnapshot(args)
	case "search":
		cmdSearch(args)
	case "daemon":
		cmdDaemon(args)
	case "invite":
		cmdInvite(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`jsoncrdtfig - figures and demos for the jsoncrdt engine

Usage: jsoncrdtfig <command> [options]

Commands:
  scenarios [name]   Run the convergence scenarios (S1-S6), or one by name
  snapshot --data DIR   Demonstrate save/restore via internal/snapshot
  search             Demonstrate full-text search over a document's leaves
  daemon --name NAME --data DIR   Start a replica and sync with peers on LAN
  invite [--expiry DUR]  Print a pairing invite for this replica's sync host
  help               Show this help`)
}

// ---------- scenarios ----------

func cmdScenarios(args []string) {
	all := []struct {
		name string
		run  func()
	}{
		{"S1", scenarioS1},
		{"S2", scenarioS2},
		{"S3", scenarioS3},
		{"S4", scenarioS4},
		{"S5", scenarioS5},
		{"S6", scenarioS6},
	}

	if len(args) == 0 {
		for _, s := range all {
			fmt.Printf("== %s ==\n", s.name)
			s.run()
			fmt.Println()
		}
		return
	}

	for _, s := range all {
		if s.name == args[0] {
			s.run()
			return
		}
	}
	fmt.Fprintf(os.Stderr, "unknown scenario %q (want one of S1-S6)\n", args[0])
	os.Exit(1)
}

func newReplicaArray(replicaID string) *engine.Engine {
	e, err := engine.New(engine.Config{ReplicaID: replicaID, RootKind: engine.KindArray})
	if err != nil {
		log.Fatalf("new engine: %v", err)
	}
	return e
}

func printArray(label string, e *engine.Engine) {
	value, err := e.Value()
	if err != nil {
		log.Fatalf("%s: value: %v", label, err)
	}
	fmt.Printf("%s: %v\n", label, value)
}

// scenarioS1 — three replicas insert at the same position; all must
// converge to the same uid-ordered sequence.
func scenarioS1() {
	r1, r2, r3 := newReplicaArray("r1"), newReplicaArray("r2"), newReplicaArray("r3")
	pos := engine.Position{100}

	dA, err := r1.Apply(engine.InsertElement("a", pos, engine.WriteRegister("A")))
	must(err)
	dB, err := r2.Apply(engine.InsertElement("b", pos, engine.WriteRegister("B")))
	must(err)
	dC, err := r3.Apply(engine.InsertElement("c", pos, engine.WriteRegister("C")))
	must(err)

	for _, r := range []*engine.Engine{r1, r2, r3} {
		must(r.Join(dA))
		must(r.Join(dB))
		must(r.Join(dC))
	}
	printArray("r1", r1)
	printArray("r2", r2)
	printArray("r3", r3)
}

// scenarioS2 — distinct positions converge in position order.
func scenarioS2() {
	r1, r2, r3 := newReplicaArray("r1"), newReplicaArray("r2"), newReplicaArray("r3")

	dFirst, err := r1.Apply(engine.InsertElement("a", engine.Position{50}, engine.WriteRegister("First")))
	must(err)
	dSecond, err := r2.Apply(engine.InsertElement("b", engine.Position{150}, engine.WriteRegister("Second")))
	must(err)
	dThird, err := r3.Apply(engine.InsertElement("c", engine.Position{100}, engine.WriteRegister("Third")))
	must(err)

	for _, r := range []*engine.Engine{r1, r2, r3} {
		must(r.Join(dFirst))
		must(r.Join(dSecond))
		must(r.Join(dThird))
	}
	printArray("converged", r1)
}

// scenarioS3 — move wins over concurrent delete.
func scenarioS3() {
	base := newReplicaArray("seed")
	dA, err := base.Apply(engine.InsertElement("a", engine.Position{100}, engine.WriteRegister("A")))
	must(err)
	dB, err := base.Apply(engine.InsertElement("b", engine.Position{200}, engine.WriteRegister("B")))
	must(err)

	r1, r2 := newReplicaArray("r1"), newReplicaArray("r2")
	for _, r := range []*engine.Engine{r1, r2} {
		must(r.Join(dA))
		must(r.Join(dB))
	}

	move, err := r1.Apply(engine.MoveElement("a", engine.Position{300}))
	must(err)
	del, err := r2.Apply(engine.DeleteElement("a"))
	must(err)

	must(r1.Join(del))
	must(r2.Join(move))
	printArray("r1 (saw its own move, then peer's delete)", r1)
	printArray("r2 (saw its own delete, then peer's move)", r2)
}

// scenarioS4 — a move and a concurrent value write on the same
// element commute.
func scenarioS4() {
	base := newReplicaArray("seed")
	d, err := base.Apply(engine.InsertElement("x", engine.Position{100}, engine.WriteRegister("initial")))
	must(err)

	r1, r2 := newReplicaArray("r1"), newReplicaArray("r2")
	must(r1.Join(d))
	must(r2.Join(d))

	move, err := r1.Apply(engine.MoveElement("x", engine.Position{200}))
	must(err)
	write, err := r2.Apply(engine.AtElement("x", engine.WriteRegister("updated")))
	must(err)

	must(r1.Join(write))
	must(r2.Join(move))
	printArray("r1", r1)
	printArray("r2", r2)
}

// scenarioS5 — add-wins: a concurrent write to a map key survives a
// concurrent remove of that key.
func scenarioS5() {
	base, err := engine.New(engine.Config{ReplicaID: "seed"})
	must(err)
	d0, err := base.Apply(engine.AtKey("k", engine.KindRegister, engine.WriteRegister("v0")))
	must(err)

	r1, err := engine.New(engine.Config{ReplicaID: "r1"})
	must(err)
	r2, err := engine.New(engine.Config{ReplicaID: "r2"})
	must(err)
	must(r1.Join(d0))
	must(r2.Join(d0))

	write, err := r1.Apply(engine.AtKey("k", engine.KindRegister, engine.WriteRegister("v1")))
	must(err)
	remove, err := r2.Apply(engine.DeleteKey("k"))
	must(err)

	must(r1.Join(remove))
	must(r2.Join(write))

	v1, err := r1.Value()
	must(err)
	v2, err := r2.Value()
	must(err)
	fmt.Printf("r1: %v\n", v1)
	fmt.Printf("r2: %v\n", v2)
}

// scenarioS6 — circular concurrent moves never panic and converge.
func scenarioS6() {
	base := newReplicaArray("seed")
	dA, err := base.Apply(engine.InsertElement("A", engine.Position{100}, engine.WriteRegister("A")))
	must(err)
	dB, err := base.Apply(engine.InsertElement("B", engine.Position{200}, engine.WriteRegister("B")))
	must(err)
	dC, err := base.Apply(engine.InsertElement("C", engine.Position{300}, engine.WriteRegister("C")))
	must(err)

	r1, r2, r3 := newReplicaArray("r1"), newReplicaArray("r2"), newReplicaArray("r3")
	for _, r := range []*engine.Engine{r1, r2, r3} {
		must(r.Join(dA))
		must(r.Join(dB))
		must(r.Join(dC))
	}

	moveA, err := r1.Apply(engine.MoveElement("A", engine.Position{200}))
	must(err)
	moveB, err := r2.Apply(engine.MoveElement("B", engine.Position{300}))
	must(err)
	moveC, err := r3.Apply(engine.MoveElement("C", engine.Position{100}))
	must(err)

	for _, r := range []*engine.Engine{r1, r2, r3} {
		must(r.Join(moveA))
		must(r.Join(moveB))
		must(r.Join(moveC))
	}
	printArray("r1", r1)
	printArray("r2", r2)
	printArray("r3", r3)
}

func must(err error) {
	if err != nil {
		log.Fatalf("error: %v", err)
	}
}

// ---------- snapshot ----------

func cmdSnapshot(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", ".", "Directory to hold the snapshot database")
	fs.Parse(args)

	e, err := engine.New(engine.Config{ReplicaID: "demo"})
	must(err)
	_, err = e.Apply(engine.AtKey("title", engine.KindRegister, engine.WriteRegister("hello world")))
	must(err)

	store, err := snapshot.New(*dataDir + "/jsoncrdtfig-demo.db")
	must(err)
	defer store.Close()

	must(store.Save(e.Snapshot(), time.Now().Unix()))
	fmt.Println("saved snapshot for replica", e.ReplicaID())

	restored, err := store.Load(e.ReplicaID())
	must(err)
	reloaded, err := engine.New(engine.Config{ReplicaID: restored.ReplicaID})
	must(err)
	must(reloaded.Join(restored))
	value, err := reloaded.Value()
	must(err)
	fmt.Printf("restored value: %v\n", value)
}

// ---------- search ----------

func cmdSearch(args []string) {
	e, err := engine.New(engine.Config{ReplicaID: "demo"})
	must(err)
	_, err = e.Apply(engine.AtKey("title", engine.KindRegister, engine.WriteRegister("Hello distributed world")))
	must(err)
	_, err = e.Apply(engine.AtKey("body", engine.KindRegister, engine.WriteRegister("CRDTs converge without coordination")))
	must(err)

	idx, err := engine.NewMemorySearchIndex()
	must(err)
	defer idx.Close()

	must(e.Reindex(idx))

	results, err := engine.Search(idx, "converge", engine.SearchOptions{})
	must(err)
	for _, r := range results {
		fmt.Printf("%s (score %.3f)\n", r.Path, r.Score)
	}
}

// ---------- daemon ----------

type stdLogger struct{}

func (stdLogger) Printf(format string, v ...interface{}) { log.Printf(format, v...) }

func cmdDaemon(args []string) {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	name := fs.String("name", "jsoncrdtfig", "Replica name for logging")
	dataDir := fs.String("data", "", "Allowlist persistence directory (empty = in-memory)")
	dht := fs.Bool("dht", false, "Enable DHT for global peer discovery")
	fs.Parse(args)

	log.Printf("starting replica %q...", *name)

	e, err := engine.New(engine.Config{ReplicaID: *name})
	must(err)

	cfg := engine.DefaultSyncConfig()
	cfg.AllowlistPath = *dataDir
	cfg.EnableDHT = *dht
	cfg.Logger = stdLogger{}

	service, err := engine.NewSyncService(e, cfg)
	must(err)

	ctx, cancel := context.WithCancel(context.Background())
	must(service.Start(ctx))
	log.Printf("listening; discovering peers on LAN (mDNS)")

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			metrics := service.Metrics()
			log.Printf("peers=%d syncs(ok=%d fail=%d)", len(service.Peers()), metrics.SyncSuccesses, metrics.SyncFailures)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("shutting down...")
	cancel()
	must(service.Stop())
}

// ---------- invite ----------

func cmdInvite(args []string) {
	fs := flag.NewFlagSet("invite", flag.ExitOnError)
	expiry := fs.Duration("expiry", 24*time.Hour, "Invite validity duration")
	fs.Parse(args)

	e, err := engine.New(engine.Config{ReplicaID: "invite-demo"})
	must(err)

	cfg := engine.DefaultSyncConfig()
	cfg.EnableMDNS = false
	service, err := engine.NewSyncService(e, cfg)
	must(err)
	defer service.Stop()

	invite, err := security.CreateInvite(service.GetHost(), *expiry)
	must(err)

	code, err := invite.Encode()
	must(err)
	fmt.Println("invite:", code)
	fmt.Println("expires in:", invite.ExpiresIn())
}
