package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"das.dev/verifier/core"
	"das.dev/verifier/smt"
	"das.dev/verifier/store"
)

func runTool(t *testing.T, datadir string, args ...string) (string, int) {
	t.Helper()
	t.Setenv("DAS_LOG_LEVEL", "error")
	var out, errOut bytes.Buffer
	full := append([]string{"-datadir", datadir, "-parent", "parent.bit"}, args...)
	code := run(full, &out, &errOut)
	if code != 0 {
		return errOut.String(), code
	}
	return out.String(), code
}

func mustTool(t *testing.T, datadir string, args ...string) string {
	t.Helper()
	out, code := runTool(t, datadir, args...)
	if code != 0 {
		t.Fatalf("das-smt %v: exit %d: %s", args, code, out)
	}
	return out
}

func decodeHash(t *testing.T, s string) smt.H256 {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		t.Fatalf("bad hash %q", s)
	}
	var h smt.H256
	copy(h[:], b)
	return h
}

func decodeTransition(t *testing.T, out string) (Transition, []byte) {
	t.Helper()
	var tr Transition
	if err := json.Unmarshal([]byte(out), &tr); err != nil {
		t.Fatalf("transition json %q: %v", out, err)
	}
	proof, err := hex.DecodeString(tr.Proof)
	if err != nil {
		t.Fatalf("proof hex: %v", err)
	}
	return tr, proof
}

func verifyTransition(t *testing.T, out string) Transition {
	t.Helper()
	tr, proof := decodeTransition(t, out)
	err := smt.VerifyTransition(decodeHash(t, tr.PrevRoot), decodeHash(t, tr.CurrentRoot),
		decodeHash(t, tr.Key), decodeHash(t, tr.PrevValue), decodeHash(t, tr.NewValue), proof)
	if err != nil {
		t.Fatalf("transition does not verify: %v", err)
	}
	return tr
}

func TestInsertProveRemove(t *testing.T) {
	dir := t.TempDir()
	value := strings.Repeat("ab", 32)

	if out := mustTool(t, dir, "root"); out != "root="+strings.Repeat("00", 32)+" leaves=0\n" {
		t.Fatalf("empty root: %q", out)
	}

	first := verifyTransition(t, mustTool(t, dir, "-action", "create", "-expired-at", "99", "insert", "alice", value))
	if first.Account != "alice.parent.bit" || first.PrevRoot != strings.Repeat("00", 32) {
		t.Fatalf("first = %+v", first)
	}
	want := smt.KeyFromAccountID(core.AccountID([]byte("alice.parent.bit")))
	if first.Key != hex.EncodeToString(want[:]) {
		t.Fatalf("key = %s", first.Key)
	}

	second := verifyTransition(t, mustTool(t, dir, "-entity", "insert", "bob.parent.bit", "0102"))
	if second.PrevRoot != first.CurrentRoot {
		t.Fatalf("roots do not chain: %s then %s", first.CurrentRoot, second.PrevRoot)
	}
	entityHash := core.Blake2b256([]byte{0x01, 0x02})
	if second.NewValue != hex.EncodeToString(entityHash[:]) {
		t.Fatalf("entity value = %s", second.NewValue)
	}

	var m Membership
	if err := json.Unmarshal([]byte(mustTool(t, dir, "prove", "alice")), &m); err != nil {
		t.Fatalf("membership json: %v", err)
	}
	proof, _ := hex.DecodeString(m.Proof)
	if m.Root != second.CurrentRoot || m.Value != value {
		t.Fatalf("membership = %+v", m)
	}
	if err := smt.VerifyMembership(decodeHash(t, m.Root), decodeHash(t, m.Key), decodeHash(t, m.Value), proof); err != nil {
		t.Fatalf("membership does not verify: %v", err)
	}

	list := mustTool(t, dir, "list")
	if !strings.Contains(list, "account=alice.parent.bit action=create nonce=1 expired_at=99") {
		t.Fatalf("list: %q", list)
	}
	if !strings.Contains(list, "account=bob.parent.bit action=edit nonce=1") {
		t.Fatalf("list: %q", list)
	}

	removed := verifyTransition(t, mustTool(t, dir, "remove", "alice"))
	if removed.NewValue != strings.Repeat("00", 32) || removed.PrevValue != value {
		t.Fatalf("removed = %+v", removed)
	}
	if out := mustTool(t, dir, "root"); out != "root="+removed.CurrentRoot+" leaves=1\n" {
		t.Fatalf("root after remove: %q", out)
	}
}

func TestManifestTracksRoot(t *testing.T) {
	dir := t.TempDir()
	tr := verifyTransition(t, mustTool(t, dir, "insert", "alice", strings.Repeat("11", 32)))

	id := core.AccountID([]byte("parent.bit"))
	db, err := store.Open(dir, hex.EncodeToString(id[:]))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()
	m := db.Manifest()
	if m == nil {
		t.Fatalf("manifest missing")
	}
	if m.RootHex != tr.CurrentRoot || m.LeafCount != 1 || m.ParentAccount != "parent.bit" {
		t.Fatalf("manifest = %+v", m)
	}
}

func TestToolErrors(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		args []string
		code int
	}{
		{"no command", nil, 2},
		{"unknown command", []string{"grow"}, 1},
		{"missing value", []string{"insert", "alice"}, 1},
		{"bad hex", []string{"insert", "alice", "zz"}, 1},
		{"short value", []string{"insert", "alice", "0102"}, 1},
		{"remove absent leaf", []string{"remove", "nobody"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, code := runTool(t, dir, tc.args...); code != tc.code {
				t.Fatalf("exit %d, want %d", code, tc.code)
			}
		})
	}

	var out, errOut bytes.Buffer
	t.Setenv("DAS_LOG_LEVEL", "error")
	if code := run([]string{"-datadir", dir, "root"}, &out, &errOut); code != 2 {
		t.Fatalf("missing parent: exit %d", code)
	}
}
