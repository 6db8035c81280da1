package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"das.dev/verifier/config"
	"das.dev/verifier/core"
	"das.dev/verifier/logging"
	"das.dev/verifier/smt"
	"das.dev/verifier/store"
)

// Transition is what insert and remove print. Its field names match the
// smt_verify request of das-verify-cli.
type Transition struct {
	Account     string `json:"account"`
	PrevRoot    string `json:"prev_root"`
	CurrentRoot string `json:"current_root"`
	Key         string `json:"key"`
	PrevValue   string `json:"prev_value"`
	NewValue    string `json:"new_value"`
	Proof       string `json:"proof"`
}

type Membership struct {
	Account string `json:"account"`
	Root    string `json:"root"`
	Key     string `json:"key"`
	Value   string `json:"value"`
	Proof   string `json:"proof"`
}

type tool struct {
	parent string
	db     *store.DB
	tree   *smt.Tree
	log    *zap.Logger
	out    io.Writer
	now    func() uint64

	action    string
	expiredAt uint64
	entity    bool
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("das-smt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file (json/yaml/toml); DAS_* env vars override it")
	datadir := fs.String("datadir", "", "data directory (default from config)")
	parent := fs.String("parent", "", "parent account, e.g. parent.bit")
	action := fs.String("action", "", "action recorded in the leaf metadata")
	expiredAt := fs.Uint64("expired-at", 0, "expiry recorded in the leaf metadata")
	entity := fs.Bool("entity", false, "insert value is a sub-account entity; store its blake2b hash")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}
	if *datadir == "" {
		*datadir = cfg.DataDir
	}
	if *parent == "" {
		_, _ = fmt.Fprintln(stderr, "missing -parent")
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		_, _ = fmt.Fprintln(stderr, "missing command: root|insert|remove|prove|list")
		return 2
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "logger init failed: %v\n", err)
		return 2
	}
	defer func() { _ = log.Sync() }()

	parentID := core.AccountID([]byte(*parent))
	db, err := store.Open(*datadir, hex.EncodeToString(parentID[:]))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "store open failed: %v\n", err)
		return 2
	}
	defer func() { _ = db.Close() }()

	t := &tool{
		parent:    *parent,
		db:        db,
		tree:      smt.NewTree(db),
		log:       log.With(zap.String("parent", *parent), zap.String("cmd", rest[0])),
		out:       stdout,
		now:       func() uint64 { return uint64(time.Now().Unix()) },
		action:    *action,
		expiredAt: *expiredAt,
		entity:    *entity,
	}
	if err := t.dispatch(rest[0], rest[1:]); err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", rest[0], err)
		return 1
	}
	return 0
}

func (t *tool) dispatch(cmd string, args []string) error {
	want := map[string]int{"root": 0, "insert": 2, "remove": 1, "prove": 1, "list": 0}
	n, ok := want[cmd]
	if !ok {
		return fmt.Errorf("unknown command")
	}
	if len(args) != n {
		return fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	switch cmd {
	case "root":
		return t.root()
	case "insert":
		value, err := t.parseValue(args[1])
		if err != nil {
			return err
		}
		return t.update(args[0], value)
	case "remove":
		return t.update(args[0], smt.Zero)
	case "prove":
		return t.prove(args[0])
	default:
		return t.list()
	}
}

// fullAccount accepts either a bare sub-account label or the full name.
func (t *tool) fullAccount(sub string) string {
	if strings.HasSuffix(sub, "."+t.parent) {
		return sub
	}
	return sub + "." + t.parent
}

func keyOf(account string) smt.H256 {
	return smt.KeyFromAccountID(core.AccountID([]byte(account)))
}

func (t *tool) parseValue(s string) (smt.H256, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return smt.Zero, fmt.Errorf("bad value hex: %w", err)
	}
	if t.entity {
		return core.Blake2b256(b), nil
	}
	if len(b) != 32 {
		return smt.Zero, fmt.Errorf("value must be 32 bytes, got %d", len(b))
	}
	var v smt.H256
	copy(v[:], b)
	return v, nil
}

func (t *tool) root() error {
	root, err := t.tree.Root()
	if err != nil {
		return err
	}
	n, err := t.db.LeafCount()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(t.out, "root=%x leaves=%d\n", root, n)
	return nil
}

func (t *tool) update(sub string, value smt.H256) error {
	account := t.fullAccount(sub)
	key := keyOf(account)
	prevRoot, err := t.tree.Root()
	if err != nil {
		return err
	}
	prevValue, err := t.tree.Get(key)
	if err != nil {
		return err
	}
	if prevValue == value {
		return fmt.Errorf("%s: leaf already holds %x", account, value)
	}
	proof, root, err := t.tree.Update(key, value)
	if err != nil {
		return err
	}
	if err := t.recordMeta(key, account, value); err != nil {
		return err
	}
	if err := t.writeManifest(root); err != nil {
		return err
	}
	t.log.Info("leaf updated",
		zap.String("account", account),
		zap.String("prev_root", hex.EncodeToString(prevRoot[:])),
		zap.String("current_root", hex.EncodeToString(root[:])))

	return t.print(Transition{
		Account:     account,
		PrevRoot:    hex.EncodeToString(prevRoot[:]),
		CurrentRoot: hex.EncodeToString(root[:]),
		Key:         hex.EncodeToString(key[:]),
		PrevValue:   hex.EncodeToString(prevValue[:]),
		NewValue:    hex.EncodeToString(value[:]),
		Proof:       hex.EncodeToString(proof.Encode()),
	})
}

func (t *tool) recordMeta(key smt.H256, account string, value smt.H256) error {
	action := t.action
	if action == "" {
		action = "edit"
		if value == smt.Zero {
			action = "recycle"
		}
	}
	m, _, err := t.db.GetLeafMeta(key)
	if err != nil {
		return err
	}
	m.Account = account
	m.Action = action
	m.UpdatedAt = t.now()
	if t.expiredAt != 0 {
		m.ExpiredAt = t.expiredAt
	}
	if value != smt.Zero {
		m.Nonce++
	}
	return t.db.PutLeafMeta(key, m)
}

func (t *tool) writeManifest(root smt.H256) error {
	n, err := t.db.LeafCount()
	if err != nil {
		return err
	}
	parentID := core.AccountID([]byte(t.parent))
	return t.db.SetManifest(&store.Manifest{
		SchemaVersion: store.SchemaVersionV1,
		ParentAccount: t.parent,
		ParentIDHex:   hex.EncodeToString(parentID[:]),
		RootHex:       hex.EncodeToString(root[:]),
		LeafCount:     n,
		UpdatedAt:     t.now(),
	})
}

func (t *tool) prove(sub string) error {
	account := t.fullAccount(sub)
	key := keyOf(account)
	root, err := t.tree.Root()
	if err != nil {
		return err
	}
	value, err := t.tree.Get(key)
	if err != nil {
		return err
	}
	proof, err := t.tree.Prove(key)
	if err != nil {
		return err
	}
	return t.print(Membership{
		Account: account,
		Root:    hex.EncodeToString(root[:]),
		Key:     hex.EncodeToString(key[:]),
		Value:   hex.EncodeToString(value[:]),
		Proof:   hex.EncodeToString(proof.Encode()),
	})
}

func (t *tool) list() error {
	return t.db.ForEachLeaf(func(key, value smt.H256, meta *store.LeafMeta) error {
		if meta == nil {
			_, _ = fmt.Fprintf(t.out, "key=%x value=%x\n", key, value)
			return nil
		}
		_, _ = fmt.Fprintf(t.out, "key=%x value=%x account=%s action=%s nonce=%d expired_at=%d updated_at=%d\n",
			key, value, meta.Account, meta.Action, meta.Nonce, meta.ExpiredAt, meta.UpdatedAt)
		return nil
	})
}

func (t *tool) print(v any) error {
	enc := json.NewEncoder(t.out)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
