package resolution

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/order-convert/internal/company"
	"github.com/sells-group/order-convert/pkg/cuit"
)

// Kind is the operator's answer to a conflict.
type Kind string

const (
	// KindUnify overwrites an existing record with the incoming data.
	KindUnify Kind = "unify"
	// KindKeep stores the incoming data as a new record.
	KindKeep Kind = "keep"
	// KindIgnore drops the incoming data.
	KindIgnore Kind = "ignore"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindUnify, KindKeep, KindIgnore:
		return true
	}
	return false
}

// UnmarshalJSON accepts the names above in any case and the numeric form
// 1 (unify), 2 (keep), 3 (ignore) written by the desktop tool. Other values
// decode to an invalid kind.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		switch n {
		case 1:
			*k = KindUnify
		case 2:
			*k = KindKeep
		case 3:
			*k = KindIgnore
		default:
			*k = Kind(strconv.Itoa(n))
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "resolution: decode decision kind")
	}
	*k = Kind(strings.ToLower(strings.TrimSpace(s)))
	return nil
}

// Decision is a remembered answer. TargetRow is set for KindUnify only.
type Decision struct {
	Kind      Kind `json:"kind"`
	TargetRow int  `json:"target_row,omitempty"`
}

// UnmarshalJSON also reads the desktop tool's "TargetRowIndex" field.
func (d *Decision) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind           Kind `json:"kind"`
		TargetRow      int  `json:"target_row"`
		TargetRowIndex *int `json:"TargetRowIndex"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Kind = raw.Kind
	d.TargetRow = raw.TargetRow
	if d.TargetRow == 0 && raw.TargetRowIndex != nil {
		d.TargetRow = *raw.TargetRowIndex
	}
	return nil
}

// Unify returns a decision to merge into row.
func Unify(row int) Decision { return Decision{Kind: KindUnify, TargetRow: row} }

// Keep returns a decision to insert a separate record.
func Keep() Decision { return Decision{Kind: KindKeep} }

// Ignore returns a decision to drop the incoming record.
func Ignore() Decision { return Decision{Kind: KindIgnore} }

// Key identifies a conflict: the CUIT digits plus the incoming site.
type Key struct {
	CUIT string
	Site company.SiteKey
}

// KeyFor builds the key of rec.
func KeyFor(rec company.Record) Key {
	return Key{CUIT: cuit.Digits(rec.CUIT), Site: rec.Site()}
}

// String renders the persisted form "{digits}|{street}|{locality}|{province}".
func (k Key) String() string {
	return k.CUIT + "|" + k.Site.String()
}

// ParseKey reverses Key.String. Digits never contain "|", so the first
// separator always ends the CUIT.
func ParseKey(s string) (Key, error) {
	i := strings.Index(s, "|")
	if i < 0 {
		return Key{}, eris.Errorf("resolution: malformed key %q", s)
	}
	site, ok := company.ParseSiteKey(s[i+1:])
	if !ok {
		return Key{}, eris.Errorf("resolution: malformed site in key %q", s)
	}
	return Key{CUIT: s[:i], Site: site}, nil
}
