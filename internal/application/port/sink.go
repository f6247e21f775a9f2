package port

import "time"

// Sink 终端状态输出
type Sink interface {
	// WriteLive redraws the status line in place.
	WriteLive(line string) error
	// WriteSnapshot appends a timestamped line that stays in the scrollback.
	WriteSnapshot(ts time.Time, line string) error
	NewLine() error
}
