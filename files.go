/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
)

// humanReadableSize formats n bytes using SI units.
func humanReadableSize(n int64) string {
	const unit int64 = 1000

	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := unit, 0
	for rest := n / unit; rest >= unit; rest /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "kMGTPE"[exp])
}
