package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/runnerr0/timesheet/internal/service"
)

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// formatDurationHuman formats a duration into a human-readable string like "30 days".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}

// checkDaemon attempts an HTTP GET to the daemon's status endpoint.
// Returns true if the daemon responds within 1 second.
func checkDaemon(addr string) bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get("http://" + addr + "/status")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// printJSON writes v indented to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// commandResult prints resp as JSON when requested and turns a failed
// response into the command's error.
func commandResult(globals *GlobalFlags, resp service.Response, human func(service.Response)) error {
	if globals != nil && globals.JSON {
		if err := printJSON(resp); err != nil {
			return err
		}
	} else if resp.OK() {
		human(resp)
	}
	if !resp.OK() {
		return errors.New(resp.Message)
	}
	return nil
}
