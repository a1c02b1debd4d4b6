package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// proxyHandle tracks a translation proxy launched as a subprocess.
type proxyHandle struct {
	cmd     *exec.Cmd
	baseURL string
}

// startProxy launches the translation proxy subprocess and waits for its
// health endpoint to come up before returning.
func startProxy(ctx context.Context, command string, port int, logger *zap.Logger) (*proxyHandle, error) {
	cmd := exec.CommandContext(ctx, command)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PORT=%d", port))
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start proxy %s: %w", command, err)
	}

	h := &proxyHandle{
		cmd:     cmd,
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
	}

	logger.Info("proxy subprocess started",
		zap.String("command", command),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("base_url", h.baseURL),
	)

	if err := waitHealthy(ctx, h.baseURL, 15*time.Second); err != nil {
		h.stop()
		return nil, err
	}

	logger.Info("proxy healthy", zap.String("base_url", h.baseURL))
	return h, nil
}

func (h *proxyHandle) stop() {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return
	}
	_ = h.cmd.Process.Kill()
	_ = h.cmd.Wait()
}

// waitHealthy polls GET /health until the proxy reports healthy or the
// wait budget is spent.
func waitHealthy(ctx context.Context, baseURL string, wait time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(wait)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		if checkHealth(ctx, client, baseURL) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}

	return fmt.Errorf("proxy at %s did not become healthy within %s", baseURL, wait)
}

func checkHealth(ctx context.Context, client *http.Client, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false
	}
	return health.Status == "healthy"
}

// isPreloadScript reports whether the proxy command is a Node preload
// script rather than a standalone server binary.
func isPreloadScript(command string) bool {
	return strings.HasSuffix(command, ".js") || strings.HasSuffix(command, ".cjs")
}
