package domain

import (
	"sort"
	"strings"
	"time"
)

// ChainRow pairs the call and put sharing one strike. Either side may be nil.
type ChainRow struct {
	Strike float64     `json:"strikePrice"`
	Call   *Instrument `json:"call,omitempty"`
	Put    *Instrument `json:"put,omitempty"`
}

// ExpiryGroup 同一到期日的期权链
type ExpiryGroup struct {
	ExpiryDate      time.Time  `json:"expiryDate"`
	ExpiryTimestamp int64      `json:"expiryTimestamp"`
	Rows            []ChainRow `json:"rows"`
}

// SameDay reports whether two times fall on the same UTC calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// ProjectChain builds the options chain of one underlying. Groups are ordered by expiry
// timestamp and rows by strike. A non-nil expiry keeps only the group on that calendar date.
func ProjectChain(instruments []Instrument, underlying string, expiry *time.Time) []ExpiryGroup {
	byExpiry := make(map[int64][]Instrument)
	for _, in := range instruments {
		if !strings.EqualFold(in.Underlying, underlying) {
			continue
		}
		byExpiry[in.ExpiryTimestamp] = append(byExpiry[in.ExpiryTimestamp], in)
	}

	stamps := make([]int64, 0, len(byExpiry))
	for ts := range byExpiry {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	out := make([]ExpiryGroup, 0, len(stamps))
	for _, ts := range stamps {
		group := byExpiry[ts]
		if expiry != nil && !SameDay(group[0].ExpiryDate, *expiry) {
			continue
		}
		out = append(out, ExpiryGroup{
			ExpiryDate:      group[0].ExpiryDate,
			ExpiryTimestamp: ts,
			Rows:            strikeRows(group),
		})
	}
	return out
}

func strikeRows(group []Instrument) []ChainRow {
	byStrike := make(map[float64]*ChainRow)
	for i := range group {
		in := &group[i]
		row, ok := byStrike[in.Strike]
		if !ok {
			row = &ChainRow{Strike: in.Strike}
			byStrike[in.Strike] = row
		}
		if in.Side == SideCall {
			row.Call = in
		} else {
			row.Put = in
		}
	}

	rows := make([]ChainRow, 0, len(byStrike))
	for _, r := range byStrike {
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Strike < rows[j].Strike })
	return rows
}
