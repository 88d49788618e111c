// internal/common/database/health.go
package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Ready pings every dependency under one deadline and names each that failed.
func Ready(ctx context.Context, timeout time.Duration, deps map[string]Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var failed []string
	for name, p := range deps {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("dependencies unavailable: %s", strings.Join(failed, "; "))
	}
	return nil
}
