package util

import "fmt"

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// Human formats a byte count for summaries and log lines.
func Human(n int64) string {
	if n < 1<<10 {
		return fmt.Sprintf("%d B", n)
	}

	v := float64(n) / (1 << 10)
	unit := 0
	for v >= 1<<10 && unit < len(byteUnits)-1 {
		v /= 1 << 10
		unit++
	}

	return fmt.Sprintf("%.2f %s", v, byteUnits[unit])
}
