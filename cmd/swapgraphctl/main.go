// Command swapgraphctl is the operator CLI for a swapgraphd node: export and
// import a state snapshot, replay a matching pass offline against an
// exported snapshot, and verify a custody inclusion proof without standing
// up the HTTP API. Grounded on nhbctl's subcommand-dispatch/flag.FlagSet
// shape (cmd/nhbctl/main.go).
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"swapgraph/internal/custody"
	"swapgraph/internal/matching"
	"swapgraph/internal/signing"
	"swapgraph/internal/store"
)

const (
	snapshotExportCommand = "snapshot-export"
	snapshotImportCommand = "snapshot-import"
	runMatchingCommand    = "run-matching"
	verifyProofCommand    = "verify-proof"
	genSigningKeyCommand  = "gen-signing-key"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case snapshotExportCommand:
		err = runSnapshotExport(os.Args[2:])
	case snapshotImportCommand:
		err = runSnapshotImport(os.Args[2:])
	case runMatchingCommand:
		err = runMatching(os.Args[2:])
	case verifyProofCommand:
		err = runVerifyProof(os.Args[2:])
	case genSigningKeyCommand:
		err = runGenSigningKey(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("swapgraphctl <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Printf("  %s     Dump a node's bbolt-backed state to canonical JSON\n", snapshotExportCommand)
	fmt.Printf("  %s     Load a canonical JSON state document into a bbolt file\n", snapshotImportCommand)
	fmt.Printf("  %s        Run one matching pass offline against an exported snapshot\n", runMatchingCommand)
	fmt.Printf("  %s        Verify a custody inclusion proof against a snapshot file\n", verifyProofCommand)
	fmt.Printf("  %s     Derive a signing key id/secret pair, entered without echo\n", genSigningKeyCommand)
}

func runSnapshotExport(args []string) error {
	fs := flag.NewFlagSet(snapshotExportCommand, flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the node's bbolt snapshot file")
	outPath := fs.String("out", "", "output path for the canonical JSON document (default: stdout)")
	fs.Parse(args)

	if strings.TrimSpace(*dbPath) == "" {
		return fmt.Errorf("-db is required")
	}

	persister, err := store.NewBboltPersister(*dbPath)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}

	st, err := store.New(persister)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	defer st.Close()

	raw, err := st.Export()
	if err != nil {
		return fmt.Errorf("export state: %w", err)
	}

	out := os.Stdout
	if strings.TrimSpace(*outPath) != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	if _, err := out.Write(raw); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if out == os.Stdout {
		fmt.Fprintln(out)
	}
	return nil
}

func runSnapshotImport(args []string) error {
	fs := flag.NewFlagSet(snapshotImportCommand, flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the bbolt snapshot file to write")
	inPath := fs.String("in", "", "input canonical JSON document (default: stdin)")
	fs.Parse(args)

	if strings.TrimSpace(*dbPath) == "" {
		return fmt.Errorf("-db is required")
	}

	in := os.Stdin
	if strings.TrimSpace(*inPath) != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			return fmt.Errorf("open input file: %w", err)
		}
		defer f.Close()
		in = f
	}
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	persister, err := store.NewBboltPersister(*dbPath)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}

	st, err := store.New(persister)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer st.Close()

	if err := st.Restore(raw); err != nil {
		return fmt.Errorf("restore document: %w", err)
	}
	if err := st.Update(func(*store.Document) error { return nil }); err != nil {
		return fmt.Errorf("persist restored document: %w", err)
	}
	fmt.Println("imported snapshot into", *dbPath)
	return nil
}

// runMatching replays one matching pass against an exported snapshot
// document without mutating it or requiring a running node — useful for
// operators previewing what a pass would propose before triggering it
// through the API.
func runMatching(args []string) error {
	fs := flag.NewFlagSet(runMatchingCommand, flag.ExitOnError)
	inPath := fs.String("in", "", "exported canonical JSON document (default: stdin)")
	maxCycleLen := fs.Int("max-len", 0, "override the default maximum cycle length (0 keeps the default)")
	fs.Parse(args)

	in := os.Stdin
	if strings.TrimSpace(*inPath) != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			return fmt.Errorf("open input file: %w", err)
		}
		defer f.Close()
		in = f
	}
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	st, err := store.New(nil)
	if err != nil {
		return fmt.Errorf("open in-memory state store: %w", err)
	}
	defer st.Close()
	if err := st.Restore(raw); err != nil {
		return fmt.Errorf("restore document: %w", err)
	}

	bounds := matching.Bounds{}.WithDefaults()
	if *maxCycleLen > 0 {
		bounds.MaxLen = *maxCycleLen
	}
	cfg := matching.DefaultConfig()

	var proposals []store.CycleProposal
	var trace matching.Trace
	var runErr error
	st.View(func(d *store.Document) {
		intentsCopy := make(map[string]*store.SwapIntent, len(d.Intents))
		for k, v := range d.Intents {
			intentsCopy[k] = v
		}
		edgesCopy := make(map[string]*store.EdgeIntent, len(d.EdgeIntents))
		for k, v := range d.EdgeIntents {
			edgesCopy[k] = v
		}
		proposals, trace, runErr = matching.Run(intentsCopy, edgesCopy, bounds, cfg, time.Now())
	})
	if runErr != nil {
		return fmt.Errorf("run matching: %w", runErr)
	}

	result := struct {
		RunID                     string                `json:"run_id"`
		NodeCount                 int                   `json:"intents_active"`
		EdgeCount                 int                   `json:"edges"`
		SCCCount                  int                   `json:"scc_count"`
		EnumeratedCycles          int                   `json:"enumerated_cycles"`
		TripReason                string                `json:"trip_reason"`
		CycleEnumerationLimited   bool                  `json:"cycle_enumeration_limited"`
		CycleEnumerationTimedOut  bool                  `json:"cycle_enumeration_timed_out"`
		ProposalsConsidered       int                   `json:"proposals_considered"`
		ProposalsSelected         int                   `json:"proposals_selected"`
		Proposals                 []store.CycleProposal `json:"proposals"`
	}{
		RunID:                    trace.RunID,
		NodeCount:                trace.NodeCount,
		EdgeCount:                trace.EdgeCount,
		SCCCount:                 trace.SCCCount,
		EnumeratedCycles:         trace.EnumeratedCycles,
		TripReason:               string(trace.TripReason),
		CycleEnumerationLimited:  trace.CycleEnumerationLimited,
		CycleEnumerationTimedOut: trace.CycleEnumerationTimedOut,
		ProposalsConsidered:      trace.ProposalsConsidered,
		ProposalsSelected:        trace.ProposalsSelected,
		Proposals:                proposals,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runVerifyProof(args []string) error {
	fs := flag.NewFlagSet(verifyProofCommand, flag.ExitOnError)
	snapshotPath := fs.String("snapshot", "", "exported canonical JSON document containing the custody snapshot")
	snapshotID := fs.String("snapshot-id", "", "snapshot id to verify against")
	proofPath := fs.String("proof", "", "JSON-encoded custody.Proof to verify (default: stdin)")
	fs.Parse(args)

	if strings.TrimSpace(*snapshotPath) == "" || strings.TrimSpace(*snapshotID) == "" {
		return fmt.Errorf("-snapshot and -snapshot-id are required")
	}

	snapshotRaw, err := os.ReadFile(*snapshotPath)
	if err != nil {
		return fmt.Errorf("read snapshot document: %w", err)
	}
	st, err := store.New(nil)
	if err != nil {
		return fmt.Errorf("open in-memory state store: %w", err)
	}
	defer st.Close()
	if err := st.Restore(snapshotRaw); err != nil {
		return fmt.Errorf("restore document: %w", err)
	}

	proofIn := os.Stdin
	if strings.TrimSpace(*proofPath) != "" {
		f, err := os.Open(*proofPath)
		if err != nil {
			return fmt.Errorf("open proof file: %w", err)
		}
		defer f.Close()
		proofIn = f
	}
	var proof custody.Proof
	if err := json.NewDecoder(proofIn).Decode(&proof); err != nil {
		return fmt.Errorf("decode proof: %w", err)
	}

	var snapshot *store.CustodySnapshot
	st.View(func(d *store.Document) {
		snapshot = d.CustodySnapshots[*snapshotID]
	})
	if snapshot == nil {
		return fmt.Errorf("snapshot %s not found in document", *snapshotID)
	}

	if err := custody.VerifyProof(proof.LeafHash, proof, snapshot.RootHash); err != nil {
		fmt.Println("verification failed:", err)
		os.Exit(1)
	}
	fmt.Println("proof verified against root", snapshot.RootHash)
	return nil
}

// runGenSigningKey prompts for the signing secret without echoing it to the
// terminal, then prints the keyId/secret pair a swapgraphd.yaml signing
// block needs, so an operator never has a secret land in shell history.
func runGenSigningKey(args []string) error {
	fs := flag.NewFlagSet(genSigningKeyCommand, flag.ExitOnError)
	keyID := fs.String("key-id", "", "signing key id to associate with the entered secret")
	fs.Parse(args)

	if strings.TrimSpace(*keyID) == "" {
		return fmt.Errorf("-key-id is required")
	}

	fmt.Fprint(os.Stderr, "Enter signing secret: ")
	secretBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimSpace(string(secretBytes))

	signer, err := signing.NewSigner(*keyID, secret)
	if err != nil {
		return fmt.Errorf("build signer: %w", err)
	}

	fmt.Printf("signing:\n  keyId: %s\n  secret: %s\n", signer.KeyID(), hex.EncodeToString([]byte(secret)))
	return nil
}
