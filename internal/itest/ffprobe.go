//go:build integration

package itest

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// probeDurationSeconds reports the container duration of a produced reel.
func probeDurationSeconds(path string) (float64, error) {
	bin := os.Getenv("FFPROBE_PATH")
	if bin == "" {
		bin = "ffprobe"
	}
	out, err := exec.Command(bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	).CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w\n%s", path, err, out)
	}
	s := strings.TrimSpace(string(out))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse reel duration %q: %w", s, err)
	}
	return sec, nil
}
