package cli

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// envReader parses typed environment values, keeping the first error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func newEnvReader() *envReader {
	return &envReader{lookup: os.LookupEnv}
}

func (r *envReader) raw(k string) (string, bool) {
	v, ok := r.lookup(k)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *envReader) fail(k, v string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s=%q: %w", k, v, err)
	}
}

func (r *envReader) String(k, def string) string {
	if v, ok := r.raw(k); ok {
		return v
	}
	return def
}

func (r *envReader) Int(k string, def int) int {
	v, ok := r.raw(k)
	if !ok {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		r.fail(k, v, err)
		return def
	}
	return n
}

func (r *envReader) Float(k string, def float64) float64 {
	v, ok := r.raw(k)
	if !ok {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
		err = errors.New("not a finite number")
	}
	if err != nil {
		r.fail(k, v, err)
		return def
	}
	return f
}

func (r *envReader) Bool(k string, def bool) bool {
	v, ok := r.raw(k)
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		r.fail(k, v, err)
		return def
	}
	return b
}

// Seconds reads a duration given in (possibly fractional) seconds.
func (r *envReader) Seconds(k string, def time.Duration) time.Duration {
	v, ok := r.raw(k)
	if !ok {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err == nil && (math.IsNaN(f) || math.IsInf(f, 0) || f < 0) {
		err = errors.New("not a non-negative number of seconds")
	}
	if err != nil {
		r.fail(k, v, err)
		return def
	}
	return time.Duration(f * float64(time.Second))
}

func (r *envReader) Time(k string) time.Time {
	v, ok := r.raw(k)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		r.fail(k, v, err)
	}
	return t
}

func (r *envReader) List(k string, def []string) []string {
	v, ok := r.raw(k)
	if !ok {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
