package device

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// parseMemTotalMB extracts the MemTotal line (reported in kB) from a
// /proc/meminfo payload. Returns 0 when the line is missing or malformed.
func parseMemTotalMB(b []byte) int {
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return int(kb / 1024)
	}
	return 0
}
