package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// GenerateText runs gen under timeout and rejects blank output.
func GenerateText(ctx context.Context, gen IGenerator, prompt string, timeout time.Duration) (string, error) {
	if gen == nil {
		return "", ErrUnavailable
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	resp, err := gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}
