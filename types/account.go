package types

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"das.dev/verifier/core"
	"das.dev/verifier/molecule"
)

// CharSetType classifies one account character.
type CharSetType uint32

const (
	CharSetEmoji CharSetType = iota
	CharSetDigit
	CharSetEn
	CharSetZhHans
	CharSetZhHant
	CharSetJa
	CharSetKo
	CharSetRu
	CharSetTr
	CharSetTh
	CharSetVi
)

var charSetNames = []string{"Emoji", "Digit", "En", "ZhHans", "ZhHant", "Ja", "Ko", "Ru", "Tr", "Th", "Vi"}

func (c CharSetType) Defined() bool {
	return int(c) < len(charSetNames)
}

func (c CharSetType) String() string {
	if c.Defined() {
		return charSetNames[c]
	}
	return "Undefined"
}

func ParseCharSetType(s string) (CharSetType, bool) {
	for i, n := range charSetNames {
		if strings.EqualFold(n, s) {
			return CharSetType(i), true
		}
	}
	return 0, false
}

type AccountChar struct {
	CharSet CharSetType
	Bytes   []byte
}

type AccountChars []AccountChar

// SplitAccountChars segments s rune by rune, classifying each rune with
// classify. Multi-rune emoji must be supplied pre-segmented.
func SplitAccountChars(s string, classify func(rune) CharSetType) AccountChars {
	out := make(AccountChars, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		out = append(out, AccountChar{CharSet: classify(r), Bytes: []byte(string(r))})
	}
	return out
}

// DefaultCharSet is a coarse classifier covering digits, latin letters and
// treating everything else as emoji.
func DefaultCharSet(r rune) CharSetType {
	switch {
	case r >= '0' && r <= '9':
		return CharSetDigit
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-':
		return CharSetEn
	default:
		return CharSetEmoji
	}
}

func (cs AccountChars) String() string {
	var b strings.Builder
	for _, c := range cs {
		b.Write(c.Bytes)
	}
	return b.String()
}

func (cs AccountChars) Len() int { return len(cs) }

func (cs AccountChars) Encode() []byte {
	items := make([][]byte, len(cs))
	for i, c := range cs {
		items[i] = molecule.Table(molecule.Uint32(uint32(c.CharSet)), molecule.Bytes(c.Bytes))
	}
	return molecule.DynVec(items...)
}

func DecodeAccountChars(b []byte) (AccountChars, error) {
	items, err := molecule.ReadDynVec(b)
	if err != nil {
		return nil, err
	}
	out := make(AccountChars, len(items))
	for i, it := range items {
		fields, err := molecule.ReadTable(it, 2, false)
		if err != nil {
			return nil, err
		}
		cs, err := molecule.ReadUint32(fields[0])
		if err != nil {
			return nil, err
		}
		raw, err := molecule.ReadBytes(fields[1])
		if err != nil {
			return nil, err
		}
		out[i] = AccountChar{CharSet: CharSetType(cs), Bytes: append([]byte(nil), raw...)}
	}
	return out, nil
}

type Record struct {
	Type  string
	Key   string
	Label string
	Value string
	TTL   uint32
}

type Records []Record

func (rs Records) Encode() []byte {
	items := make([][]byte, len(rs))
	for i, r := range rs {
		items[i] = molecule.Table(
			molecule.Bytes([]byte(r.Type)),
			molecule.Bytes([]byte(r.Key)),
			molecule.Bytes([]byte(r.Label)),
			molecule.Bytes([]byte(r.Value)),
			molecule.Uint32(r.TTL),
		)
	}
	return molecule.DynVec(items...)
}

func DecodeRecords(b []byte) (Records, error) {
	items, err := molecule.ReadDynVec(b)
	if err != nil {
		return nil, err
	}
	out := make(Records, len(items))
	for i, it := range items {
		fields, err := molecule.ReadTable(it, 5, false)
		if err != nil {
			return nil, err
		}
		var strs [4]string
		for j := 0; j < 4; j++ {
			raw, err := molecule.ReadBytes(fields[j])
			if err != nil {
				return nil, err
			}
			strs[j] = string(raw)
		}
		ttl, err := molecule.ReadUint32(fields[4])
		if err != nil {
			return nil, err
		}
		out[i] = Record{Type: strs[0], Key: strs[1], Label: strs[2], Value: strs[3], TTL: ttl}
	}
	return out, nil
}

const (
	SubAccountV1FieldCount = 11
	SubAccountFieldCount   = 12
)

// SubAccount is the leaf entity committed in a parent's SMT.
type SubAccount struct {
	Lock                 Script
	ID                   [core.AccountIDLength]byte
	Account              AccountChars
	Suffix               string
	RegisteredAt         uint64
	ExpiredAt            uint64
	Status               core.AccountStatus
	Records              Records
	Nonce                uint64
	EnableSubAccount     uint8
	RenewSubAccountPrice uint64
	Approval             AccountApproval

	// Version 1 entities are written without the approval field; any other
	// value selects the latest layout.
	Version uint32
}

func (s *SubAccount) Encode() []byte {
	fields := [][]byte{
		s.Lock.Encode(),
		s.ID[:],
		s.Account.Encode(),
		molecule.Bytes([]byte(s.Suffix)),
		molecule.Uint64(s.RegisteredAt),
		molecule.Uint64(s.ExpiredAt),
		molecule.Uint8(uint8(s.Status)),
		s.Records.Encode(),
		molecule.Uint64(s.Nonce),
		molecule.Uint8(s.EnableSubAccount),
		molecule.Uint64(s.RenewSubAccountPrice),
	}
	if s.Version != 1 {
		fields = append(fields, s.Approval.Encode())
	}
	return molecule.Table(fields...)
}

// Hash is the SMT leaf value of the entity.
func (s *SubAccount) Hash() [32]byte {
	return core.Blake2b256(s.Encode())
}

// FullAccount returns the account text including its suffix.
func (s *SubAccount) FullAccount() string {
	return s.Account.String() + s.Suffix
}

func (s *SubAccount) Clone() *SubAccount {
	c := *s
	c.Lock.Args = append([]byte(nil), s.Lock.Args...)
	c.Account = append(AccountChars(nil), s.Account...)
	c.Records = append(Records(nil), s.Records...)
	c.Approval = AccountApproval{
		Action: append([]byte(nil), s.Approval.Action...),
		Params: append([]byte(nil), s.Approval.Params...),
	}
	return &c
}

// DecodeSubAccount accepts both the 11-field and the 12-field layout.
func DecodeSubAccount(b []byte) (*SubAccount, error) {
	fields, err := molecule.ReadOffsetTable(b)
	if err != nil {
		return nil, err
	}
	if len(fields) < SubAccountV1FieldCount {
		return nil, core.Errorf(core.Encoding, "sub-account: %d fields", len(fields))
	}
	s := &SubAccount{Version: 1}
	if s.Lock, err = DecodeScript(fields[0]); err != nil {
		return nil, err
	}
	if len(fields[1]) != core.AccountIDLength {
		return nil, core.Errorf(core.Encoding, "sub-account: id has %d bytes", len(fields[1]))
	}
	copy(s.ID[:], fields[1])
	if s.Account, err = DecodeAccountChars(fields[2]); err != nil {
		return nil, err
	}
	suffix, err := molecule.ReadBytes(fields[3])
	if err != nil {
		return nil, err
	}
	s.Suffix = string(suffix)
	if s.RegisteredAt, err = molecule.ReadUint64(fields[4]); err != nil {
		return nil, err
	}
	if s.ExpiredAt, err = molecule.ReadUint64(fields[5]); err != nil {
		return nil, err
	}
	status, err := molecule.ReadUint8(fields[6])
	if err != nil {
		return nil, err
	}
	s.Status = core.AccountStatus(status)
	if s.Records, err = DecodeRecords(fields[7]); err != nil {
		return nil, err
	}
	if s.Nonce, err = molecule.ReadUint64(fields[8]); err != nil {
		return nil, err
	}
	if s.EnableSubAccount, err = molecule.ReadUint8(fields[9]); err != nil {
		return nil, err
	}
	if s.RenewSubAccountPrice, err = molecule.ReadUint64(fields[10]); err != nil {
		return nil, err
	}
	if len(fields) >= SubAccountFieldCount {
		s.Version = 2
		if s.Approval, err = DecodeAccountApproval(fields[11]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// EqualEncoded compares two entities by their serialized form.
func EqualEncoded(a, b *SubAccount) bool {
	return bytes.Equal(a.Encode(), b.Encode())
}
