package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"xopt/internal/application/port"
	"xopt/internal/domain"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

type RenderMode int

const (
	RenderLive RenderMode = iota
	RenderSnapshot
)

// StatusReporter prints a one-line summary of the snapshot to a console sink.
type StatusReporter struct {
	snap         *domain.Snapshot
	sink         port.Sink
	liveEvery    time.Duration
	persistEvery time.Duration
}

func NewStatusReporter(snap *domain.Snapshot, sink port.Sink, liveEvery, snapshotEvery time.Duration) *StatusReporter {
	if liveEvery <= 0 {
		liveEvery = time.Second
	}
	if snapshotEvery <= 0 {
		snapshotEvery = 30 * time.Second
	}
	return &StatusReporter{snap: snap, sink: sink, liveEvery: liveEvery, persistEvery: snapshotEvery}
}

func (r *StatusReporter) Run(ctx context.Context) error {
	live := time.NewTicker(r.liveEvery)
	defer live.Stop()
	snapT := time.NewTicker(r.persistEvery)
	defer snapT.Stop()

	_ = r.sink.WriteLive(r.Render(RenderLive))
	for {
		select {
		case <-ctx.Done():
			_ = r.sink.NewLine()
			return nil
		case <-live.C:
			_ = r.sink.WriteLive(r.Render(RenderLive))
		case now := <-snapT.C:
			_ = r.sink.WriteSnapshot(now, r.Render(RenderSnapshot))
		}
	}
}

// Render builds the status line: connection, underlying index, selected contract
// top of book and the last trade.
func (r *StatusReporter) Render(mode RenderMode) string {
	sel := r.snap.Selection()

	var sb strings.Builder
	if mode == RenderLive {
		sb.WriteString("\r")
	}
	sb.WriteString(colorize("[XOPT] ", ansiDim))

	if r.snap.Connected() {
		sb.WriteString(colorize("● live", ansiGreen))
	} else {
		sb.WriteString(colorize("○ offline", ansiRed))
	}

	sb.WriteString(colorize("  |  ", ansiDim))
	sb.WriteString(sel.Underlying)
	sb.WriteString(" ")
	if idx, ok := r.snap.Index(sel.Underlying); ok {
		sb.WriteString(colorize(fmtNum(idx.Price), ansiYellow))
	} else {
		sb.WriteString("--")
	}

	if sel.Symbol != "" {
		sb.WriteString(colorize("  |  ", ansiDim))
		sb.WriteString(sel.Symbol)
		bid, ask := "--", "--"
		if book, ok := r.snap.OrderBook(); ok {
			if lv, ok := book.BestBid(); ok {
				bid = fmtNum(lv.Price)
			}
			if lv, ok := book.BestAsk(); ok {
				ask = fmtNum(lv.Price)
			}
		}
		sb.WriteString(" ")
		sb.WriteString(colorize(bid, ansiGreen))
		sb.WriteString(" / ")
		sb.WriteString(colorize(ask, ansiRed))

		if trades := r.snap.Trades(); len(trades) > 0 {
			t := trades[0]
			col := ansiGreen
			if t.Side == domain.TradeSideSell {
				col = ansiRed
			}
			sb.WriteString(colorize("  last ", ansiDim))
			sb.WriteString(colorize(fmt.Sprintf("%s x%s", fmtNum(t.Price), fmtNum(t.Qty)), col))
		}
	}

	if mode == RenderLive {
		sb.WriteString(ansiClearEOL)
	}
	return sb.String()
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
