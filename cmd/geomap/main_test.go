package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/matzehuels/geomap/pkg/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"interrupt", fmt.Errorf("render: %w", context.Canceled), 130},
		{"bad bounds", errors.New(errors.ErrCodeInvalidBounds, "min_lon >= max_lon"), 2},
		{"bad config", fmt.Errorf("load: %w", errors.New(errors.ErrCodeInvalidConfig, "bad color")), 2},
		{"network", errors.New(errors.ErrCodeNetwork, "dial failed"), 1},
		{"plain", stderrors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
