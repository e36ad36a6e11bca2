package builtin

import (
	"fmt"
	"sort"
	"strings"

	"tablexform/internal/config"
	"tablexform/internal/row"
	"tablexform/internal/transformer"
)

// Dedup policies.
const (
	KeepFirst    = "keep-first"
	KeepLast     = "keep-last"
	MostComplete = "most-complete"
)

// DeDup collapses rows that share the values of Keys, choosing one winner per
// key according to Policy:
//
//   - "keep-first"   : the earliest row
//   - "keep-last"    : the latest row (default)
//   - "most-complete": the row with the most non-null, non-empty values;
//     PreferFields add weight, ties go to the later row
//
// Winners are emitted ordered by the input position of the winning row. It
// is a buffering stage; the schema is unchanged.
type DeDup struct {
	Keys         []string
	Policy       string
	PreferFields []string

	schema  row.Schema
	keyIx   []int
	prefer  map[int]struct{}
	winners *row.KeyIndex[*dedupSlot]
	slots   []*dedupSlot
	seq     int
}

type dedupSlot struct {
	row   row.Row
	index int
	score int
}

// NewDeDup builds a DeDup from options "keys", "policy" and "prefer_fields".
func NewDeDup(opts config.Options) (*DeDup, error) {
	d := &DeDup{
		Keys:         opts.StringSlice("keys"),
		Policy:       strings.ToLower(strings.TrimSpace(opts.String("policy", KeepLast))),
		PreferFields: opts.StringSlice("prefer_fields"),
	}
	switch d.Policy {
	case KeepFirst, KeepLast, MostComplete:
	default:
		return nil, fmt.Errorf("dedup: unknown policy %q", d.Policy)
	}
	if len(d.Keys) == 0 {
		return nil, fmt.Errorf("dedup: at least one key column required")
	}
	return d, nil
}

func (d *DeDup) Initialize(in row.Schema) (row.Schema, bool, error) {
	if d.Policy == "" {
		d.Policy = KeepLast
	}
	d.keyIx = d.keyIx[:0]
	for _, k := range d.Keys {
		i, ok := in.Index(k)
		if !ok {
			return row.Schema{}, false, &transformer.SchemaError{Column: k, Err: transformer.ErrColumnNotFound}
		}
		d.keyIx = append(d.keyIx, i)
	}
	d.prefer = make(map[int]struct{}, len(d.PreferFields))
	for _, f := range d.PreferFields {
		i, ok := in.Index(f)
		if !ok {
			return row.Schema{}, false, &transformer.SchemaError{Column: f, Err: transformer.ErrColumnNotFound}
		}
		d.prefer[i] = struct{}{}
	}
	d.schema = in
	d.winners = row.NewKeyIndex[*dedupSlot]()
	d.slots = nil
	d.seq = 0
	return row.Schema{}, false, nil
}

func (d *DeDup) score(r row.Row) int {
	score, bonus := 0, 0
	for i, v := range r {
		if v.IsNull() {
			continue
		}
		if s, ok := v.AsText(); ok && s == "" {
			continue
		}
		score++
		if _, ok := d.prefer[i]; ok {
			bonus++
		}
	}
	return score*10 + bonus
}

func (d *DeDup) ConsumeRow(in row.Row) ([]row.Row, error) {
	keyRow := make(row.Row, len(d.keyIx))
	for j, i := range d.keyIx {
		keyRow[j] = in[i]
	}
	key := row.KeyOf(keyRow)
	idx := d.seq
	d.seq++

	prev, exists := d.winners.Get(key)
	if !exists {
		s := &dedupSlot{row: in, index: idx}
		if d.Policy == MostComplete {
			s.score = d.score(in)
		}
		d.winners.Put(key, s)
		d.slots = append(d.slots, s)
		return nil, nil
	}
	switch d.Policy {
	case KeepFirst:
	case MostComplete:
		if sc := d.score(in); sc >= prev.score {
			prev.row, prev.index, prev.score = in, idx, sc
		}
	default:
		prev.row, prev.index = in, idx
	}
	return nil, nil
}

func (d *DeDup) PreFinalize() (row.Schema, error) { return d.schema, nil }

func (d *DeDup) Finalize() ([]row.Row, error) {
	slots := d.slots
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].index < slots[j].index })
	out := make([]row.Row, len(slots))
	for i, s := range slots {
		out[i] = s.row
	}
	d.slots, d.winners = nil, nil
	return out, nil
}
