package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"das.dev/verifier/ast"
	"das.dev/verifier/config"
	"das.dev/verifier/core"
	"das.dev/verifier/devicekey"
	"das.dev/verifier/ledger"
	"das.dev/verifier/smt"
	"das.dev/verifier/types"
	"das.dev/verifier/witness"
)

func runRawJSON(t *testing.T, raw string) (Response, bool) {
	t.Helper()
	c := newCLI(config.DefaultConfig(), zaptest.NewLogger(t), true)
	var out bytes.Buffer
	ok := c.run(strings.NewReader(raw), &out)
	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", out.String(), err)
	}
	if resp.Ok != ok {
		t.Fatalf("run returned %v but response ok=%v", ok, resp.Ok)
	}
	return resp, ok
}

func mustRun(t *testing.T, req any) Response {
	t.Helper()
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, _ := runRawJSON(t, string(b))
	return resp
}

func mustRunOk(t *testing.T, req any) Response {
	t.Helper()
	resp := mustRun(t, req)
	if !resp.Ok {
		t.Fatalf("expected ok, got err=%q message=%q", resp.Err, resp.Message)
	}
	return resp
}

func mustRunErr(t *testing.T, req any, want string) Response {
	t.Helper()
	resp := mustRun(t, req)
	if resp.Ok {
		t.Fatalf("expected %s, got ok", want)
	}
	if resp.Err != want {
		t.Fatalf("err = %q, want %q", resp.Err, want)
	}
	return resp
}

func deviceKey() devicekey.DeviceKey {
	return devicekey.DeviceKey{MainAlgID: 8, SubAlgID: 7, CID: [10]byte{1}, Pubkey: [10]byte{2}}
}

// createKeyListTx is a valid create_device_key_list transaction in fixture
// form.
func createKeyListTx(t *testing.T, action string) json.RawMessage {
	t.Helper()
	cfg := config.DefaultConfig()
	refund := types.Script{CodeHash: [32]byte{0x55}, HashType: types.HashTypeType, Args: []byte{0x01}}
	d := &devicekey.CellData{Keys: []devicekey.DeviceKey{deviceKey()}, RefundLock: refund}

	lock := config.Script(cfg.Scripts.DasLock)
	lock.Args = deviceKey().LockArgs()
	typ := config.Script(cfg.Scripts.DeviceKeyListType)
	h := core.Blake2b256(d.Encode())

	tx := &ledger.Transaction{
		Inputs: []ledger.Cell{{Capacity: 200 * core.OneCKB, Lock: refund}},
		Outputs: []ledger.Cell{
			{Capacity: devicekey.BasicCapacity, Lock: lock, Type: &typ, Data: h[:]},
			{Capacity: core.OneCKB, Lock: refund},
		},
		Witness: [][]byte{
			witness.EncodeActionData(action, nil),
			witness.EncodeEntityWitness(core.DataTypeDeviceKeyList, nil,
				&witness.EntityInput{Version: 1, Index: 0, Entity: d.Encode()}, nil),
		},
		Timestamp: 1_700_000_000,
	}
	b, err := json.Marshal(ledger.FixtureOf(tx))
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return b
}

func TestBadRequest(t *testing.T) {
	resp, ok := runRawJSON(t, "{")
	if ok || !strings.HasPrefix(resp.Err, "bad request") {
		t.Fatalf("resp = %+v", resp)
	}
	mustRunErr(t, Request{Op: "nope"}, "unknown op")
}

func TestVerifyTx(t *testing.T) {
	mustRunOk(t, Request{Op: "verify_tx", Script: scriptDeviceKeyList, Tx: createKeyListTx(t, core.ActionCreateDeviceKeyList)})

	resp := mustRunErr(t, Request{Op: "verify_tx", Script: scriptDeviceKeyList, Tx: createKeyListTx(t, "transfer_account")},
		string(core.ActionNotSupported))
	if resp.Code != core.ActionNotSupported.Exit() {
		t.Fatalf("code = %d", resp.Code)
	}

	mustRunErr(t, Request{Op: "verify_tx", Script: "account_cell", Tx: createKeyListTx(t, core.ActionCreateDeviceKeyList)}, "unknown script")
	mustRunErr(t, Request{Op: "verify_tx", Tx: json.RawMessage(`{"inputs":7}`)}, "bad tx")
}

func TestDecodeWitness(t *testing.T) {
	raw := witness.EncodeActionData(core.ActionCreateDeviceKeyList, nil)
	resp := mustRunOk(t, Request{Op: "decode_witness", WitnessHex: "0x" + hex.EncodeToString(raw)})
	if resp.Witness == nil || resp.Witness.Action != core.ActionCreateDeviceKeyList {
		t.Fatalf("witness = %+v", resp.Witness)
	}
	if resp.Witness.DataType != core.DataTypeActionData.String() {
		t.Fatalf("data type = %q", resp.Witness.DataType)
	}

	mustRunErr(t, Request{Op: "decode_witness", WitnessHex: "zz"}, "bad hex")
	mustRunErr(t, Request{Op: "decode_witness", WitnessHex: "0102"}, string(core.WitnessReadingError))
}

func TestSMTVerify(t *testing.T) {
	tr := smt.NewTree(smt.NewMemoryStore())
	r0, err := tr.Root()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	k := smt.H256(core.Blake2b256([]byte("alice.parent.bit")))
	v := smt.H256(core.Blake2b256([]byte("alice")))
	proof, r1, err := tr.Update(k, v)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	h := func(b smt.H256) string { return hex.EncodeToString(b[:]) }
	req := Request{
		Op:          "smt_verify",
		PrevRoot:    h(r0),
		CurrentRoot: h(r1),
		Key:         h(k),
		PrevValue:   h(smt.Zero),
		NewValue:    h(v),
		ProofHex:    hex.EncodeToString(proof.Encode()),
	}
	mustRunOk(t, req)

	wrong := req
	wrong.NewValue = h(smt.H256{0x01})
	if resp := mustRun(t, wrong); resp.Ok || resp.Code == 0 {
		t.Fatalf("wrong value accepted: %+v", resp)
	}

	short := req
	short.Key = "abcd"
	mustRunErr(t, short, "bad hash")
	badProof := req
	badProof.ProofHex = "xx"
	mustRunErr(t, badProof, "bad proof")
}

func emojiRulesJSON(t *testing.T) json.RawMessage {
	t.Helper()
	rules := []ast.Rule{{
		Index:  0,
		Name:   "single emoji",
		Price:  100_000_000,
		Status: ast.RuleOn,
		AST: &ast.Operator{Symbol: ast.SymbolAnd, Expressions: []ast.Expression{
			&ast.Operator{Symbol: ast.SymbolEqual, Expressions: []ast.Expression{
				&ast.Variable{Name: ast.VarAccountLength},
				ast.Uint32(1),
			}},
			&ast.Function{Name: ast.FnOnlyIncludeCharset, Arguments: []ast.Expression{
				&ast.Variable{Name: ast.VarAccountChars},
				ast.Charset(types.CharSetEmoji),
			}},
		}},
	}}
	b, err := ast.MarshalRulesJSON(rules)
	if err != nil {
		t.Fatalf("marshal rules: %v", err)
	}
	return b
}

func TestRuleMatch(t *testing.T) {
	rules := emojiRulesJSON(t)
	resp := mustRunOk(t, Request{Op: "rule_match", Rules: rules, Account: "🎉"})
	if resp.Matched == nil || !*resp.Matched || resp.Price != 100_000_000 || resp.Index != 0 {
		t.Fatalf("emoji account: %+v", resp)
	}
	resp = mustRunOk(t, Request{Op: "rule_match", Rules: rules, Account: "ab", Suffix: ".parent.bit"})
	if resp.Matched == nil || *resp.Matched {
		t.Fatalf("two letters matched: %+v", resp)
	}

	resp = mustRunErr(t, Request{Op: "rule_match", Rules: json.RawMessage(`{}`), Account: "a"}, string(ast.ErrJSONValue))
	if resp.Code != core.ConfigRulesHasSyntaxError.Exit() {
		t.Fatalf("code = %d", resp.Code)
	}
}

func TestRuleSize(t *testing.T) {
	rules := emojiRulesJSON(t)
	resp := mustRunOk(t, Request{Op: "rule_size", Rules: rules})
	if resp.Size == 0 || resp.RulesHex == "" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Size != len(resp.RulesHex)/2 {
		t.Fatalf("size %d, encoded %d bytes", resp.Size, len(resp.RulesHex)/2)
	}

	again := mustRunOk(t, Request{Op: "rule_size", RulesHex: resp.RulesHex})
	if again.Size != resp.Size || again.RulesHex != resp.RulesHex {
		t.Fatalf("hex round trip: %+v", again)
	}
	mustRunErr(t, Request{Op: "rule_size", RulesHex: "0x0g"}, "bad hex")
}
