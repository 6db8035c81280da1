package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"das.dev/verifier/ast"
	"das.dev/verifier/config"
	"das.dev/verifier/core"
	"das.dev/verifier/devicekey"
	"das.dev/verifier/dispatch"
	"das.dev/verifier/ledger"
	"das.dev/verifier/sign"
	"das.dev/verifier/smt"
	"das.dev/verifier/subaccount"
	"das.dev/verifier/types"
	"das.dev/verifier/witness"
)

const (
	scriptSubAccount    = "sub_account"
	scriptDeviceKeyList = "device_key_list"
)

type Request struct {
	Op string `json:"op"`

	// verify_tx
	Script string          `json:"script,omitempty"`
	Tx     json.RawMessage `json:"tx,omitempty"`

	// decode_witness
	WitnessHex string `json:"witness,omitempty"`
	Flag       uint8  `json:"flag,omitempty"`

	// smt_verify
	PrevRoot    string `json:"prev_root,omitempty"`
	CurrentRoot string `json:"current_root,omitempty"`
	Key         string `json:"key,omitempty"`
	PrevValue   string `json:"prev_value,omitempty"`
	NewValue    string `json:"new_value,omitempty"`
	ProofHex    string `json:"proof,omitempty"`

	// rule_match, rule_size
	Rules    json.RawMessage `json:"rules,omitempty"`
	RulesHex string          `json:"rules_hex,omitempty"`
	Account  string          `json:"account,omitempty"`
	Suffix   string          `json:"suffix,omitempty"`
}

type Response struct {
	Ok      bool   `json:"ok"`
	Err     string `json:"err,omitempty"`
	Code    int8   `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	Witness *WitnessJSON `json:"witness,omitempty"`

	Matched  *bool  `json:"matched,omitempty"`
	Index    uint32 `json:"index,omitempty"`
	Price    uint64 `json:"price,omitempty"`
	Size     int    `json:"size,omitempty"`
	RulesHex string `json:"rules_hex,omitempty"`
}

// WitnessJSON summarizes a decoded protocol witness.
type WitnessJSON struct {
	DataType    string `json:"data_type"`
	Action      string `json:"action,omitempty"`
	Version     uint32 `json:"version,omitempty"`
	SubAction   string `json:"sub_action,omitempty"`
	Account     string `json:"account,omitempty"`
	Nonce       uint64 `json:"nonce,omitempty"`
	EditKey     string `json:"edit_key,omitempty"`
	EditValue   string `json:"edit_value_kind,omitempty"`
	SignRole    string `json:"sign_role,omitempty"`
	PrevRoot    string `json:"prev_root,omitempty"`
	CurrentRoot string `json:"current_root,omitempty"`
}

type cli struct {
	cfg    config.Config
	log    *zap.Logger
	oracle sign.Oracle
}

func newCLI(cfg config.Config, log *zap.Logger, dev bool) *cli {
	var oracle sign.Oracle = sign.NewCached(sign.Default(), 0)
	if dev {
		oracle = sign.Dev{}
	}
	return &cli{cfg: cfg, log: log, oracle: oracle}
}

func writeResp(w io.Writer, resp Response) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(resp)
}

// errResp renders err with its protocol code. Errors that carry no code keep
// their text.
func errResp(err error) Response {
	var ce *core.Error
	if errors.As(err, &ce) {
		return Response{Ok: false, Err: string(ce.Code), Code: ce.Code.Exit(), Message: ce.Msg}
	}
	var ae *ast.Error
	if errors.As(err, &ae) {
		return Response{Ok: false, Err: string(ae.Kind), Code: core.ConfigRulesHasSyntaxError.Exit(), Message: ae.Error()}
	}
	return Response{Ok: false, Err: err.Error()}
}

func parseExactHex32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(b) != 32 {
		return out, fmt.Errorf("expected 32 hex bytes")
	}
	copy(out[:], b)
	return out, nil
}

func parseHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// run handles one request and reports whether it succeeded.
func (c *cli) run(in io.Reader, out io.Writer) bool {
	var req Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		writeResp(out, Response{Ok: false, Err: fmt.Sprintf("bad request: %v", err)})
		return false
	}
	resp := c.handle(req)
	writeResp(out, resp)
	return resp.Ok
}

func (c *cli) handle(req Request) Response {
	log := c.log.With(zap.String("op", req.Op))
	switch req.Op {
	case "verify_tx":
		tx, err := ledger.ParseFixture(req.Tx)
		if err != nil {
			return Response{Ok: false, Err: "bad tx"}
		}
		env := dispatch.Env{Config: c.cfg, Oracle: c.oracle, Log: log}
		switch req.Script {
		case "", scriptSubAccount:
			err = subaccount.Verify(tx, env)
		case scriptDeviceKeyList:
			err = devicekey.Verify(tx, env)
		default:
			return Response{Ok: false, Err: "unknown script"}
		}
		if err != nil {
			return errResp(err)
		}
		return Response{Ok: true}

	case "decode_witness":
		raw, err := parseHex(req.WitnessHex)
		if err != nil {
			return Response{Ok: false, Err: "bad hex"}
		}
		w, err := decodeWitness(raw, core.SubAccountConfigFlag(req.Flag))
		if err != nil {
			return errResp(err)
		}
		return Response{Ok: true, Witness: w}

	case "smt_verify":
		var hs [5][32]byte
		for i, s := range []string{req.PrevRoot, req.CurrentRoot, req.Key, req.PrevValue, req.NewValue} {
			h, err := parseExactHex32(s)
			if err != nil {
				return Response{Ok: false, Err: "bad hash"}
			}
			hs[i] = h
		}
		proof, err := parseHex(req.ProofHex)
		if err != nil {
			return Response{Ok: false, Err: "bad proof"}
		}
		if err := smt.VerifyTransition(hs[0], hs[1], hs[2], hs[3], hs[4], proof); err != nil {
			return errResp(err)
		}
		return Response{Ok: true}

	case "rule_match":
		rules, err := ast.UnmarshalRulesJSON(req.Rules)
		if err != nil {
			return errResp(err)
		}
		suffix := req.Suffix
		if suffix == "" {
			suffix = ".bit"
		}
		env := &ast.Env{Account: req.Account + suffix, Chars: types.SplitAccountChars(req.Account, types.DefaultCharSet)}
		r, err := ast.Match(rules, env)
		if err != nil {
			return errResp(err)
		}
		matched := r != nil
		resp := Response{Ok: true, Matched: &matched}
		if matched {
			resp.Index, resp.Price = r.Index, r.Price
		}
		return resp

	case "rule_size":
		var rules []ast.Rule
		var err error
		switch {
		case req.RulesHex != "":
			raw, herr := parseHex(req.RulesHex)
			if herr != nil {
				return Response{Ok: false, Err: "bad hex"}
			}
			if rules, err = ast.DecodeRules("rules", raw); err != nil {
				return errResp(err)
			}
			if err := ast.VerifyRulesSize("rules", rules, raw); err != nil {
				return errResp(err)
			}
		default:
			if rules, err = ast.UnmarshalRulesJSON(req.Rules); err != nil {
				return errResp(err)
			}
		}
		return Response{Ok: true, Size: ast.RulesSize(rules), RulesHex: hex.EncodeToString(ast.EncodeRules(rules))}

	default:
		return Response{Ok: false, Err: "unknown op"}
	}
}

func decodeWitness(raw []byte, flag core.SubAccountConfigFlag) (*WitnessJSON, error) {
	dt, ok := witness.DataTypeOf(raw)
	if !ok {
		return nil, core.Errorf(core.WitnessReadingError, "witness has no protocol header")
	}
	out := &WitnessJSON{DataType: dt.String()}
	switch dt {
	case core.DataTypeActionData:
		a, err := witness.ParseActionData([][]byte{raw})
		if err != nil {
			return nil, err
		}
		out.Action = a.Action
	case core.DataTypeSubAccount:
		rec, err := witness.DecodeRecord(0, raw, flag)
		if err != nil {
			return nil, err
		}
		out.Version = rec.Version
		out.SubAction = string(rec.Action)
		out.Account = rec.SubAccount.FullAccount()
		out.Nonce = rec.SubAccount.Nonce
		out.EditKey = string(rec.EditKey)
		out.EditValue = rec.EditValue.Kind.String()
		if rec.HasSignRole {
			out.SignRole = rec.SignRole.String()
		}
		out.PrevRoot = hex.EncodeToString(rec.PrevRoot[:])
		out.CurrentRoot = hex.EncodeToString(rec.CurrentRoot[:])
	}
	return out, nil
}
