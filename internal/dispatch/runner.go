package dispatch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Output file names inside the output directory. Stale copies from a
// previous run are removed before each run starts.
const (
	promptFileName    = "combined_prompt.md"
	responseFileName  = "response.md"
	telemetryFileName = "telemetry.json"
	summaryFileName   = "action-summary.md"
	settingsFileName  = "settings.json"
)

// Dispatcher prepares a combined prompt, invokes the external AI CLI, and
// classifies the outcome.
type Dispatcher struct {
	cfg        Config
	logger     *zap.Logger
	classifier *Classifier
}

// New validates the config and builds a Dispatcher. Validation failures
// wrap ErrConfig and happen before any output file is touched.
func New(cfg Config, logger *zap.Logger) (*Dispatcher, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		cfg:        cfg,
		logger:     logger.Named("dispatch"),
		classifier: NewClassifier(cfg.QuotaPatterns, cfg.FatalPatterns),
	}, nil
}

// Run executes one dispatch cycle and reports the classified result. The
// returned error covers setup problems only; child-process failures are
// expressed through Result.Outcome.
func (d *Dispatcher) Run(ctx context.Context) (Result, error) {
	cfg := d.cfg
	runID := uuid.NewString()[:8]

	d.logger.Info("dispatch starting",
		zap.String("run_id", runID),
		zap.String("phase", string(cfg.Phase)),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout),
	)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output directory: %w", err)
	}
	d.removeStaleOutputs()

	// ----- Combined prompt -----
	prompt, err := BuildPrompt(cfg.Phase, cfg.RequestFile, cfg.RulesDir)
	if err != nil {
		return Result{}, err
	}
	promptPath := filepath.Join(cfg.OutputDir, promptFileName)
	if err := os.WriteFile(promptPath, []byte(prompt), 0o644); err != nil {
		return Result{}, fmt.Errorf("write combined prompt: %w", err)
	}

	// ----- CLI settings -----
	telemetryPath := filepath.Join(cfg.OutputDir, telemetryFileName)
	if _, err := WriteSettings(cfg.OutputDir, cfg.ActionLog, telemetryPath); err != nil {
		return Result{}, err
	}

	// ----- Execution log -----
	logPath := filepath.Join(cfg.OutputDir,
		fmt.Sprintf("execution-%s-%s.log", time.Now().Format("20060102-150405"), runID))
	logFile, err := os.Create(logPath)
	if err != nil {
		return Result{}, fmt.Errorf("create execution log: %w", err)
	}
	defer logFile.Close()

	responsePath := filepath.Join(cfg.OutputDir, responseFileName)
	responseFile, err := os.Create(responsePath)
	if err != nil {
		return Result{}, fmt.Errorf("create response file: %w", err)
	}
	defer responseFile.Close()

	runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	env := d.childEnv()

	// ----- Translation proxy -----
	if cfg.ProxyCommand != "" {
		if isPreloadScript(cfg.ProxyCommand) {
			abs, err := filepath.Abs(cfg.ProxyCommand)
			if err != nil {
				return Result{}, fmt.Errorf("resolve proxy script: %w", err)
			}
			env = append(env, "NODE_OPTIONS=--require "+abs)
			d.logger.Info("proxy preload configured", zap.String("script", abs))
		} else {
			proxy, err := startProxy(runCtx, cfg.ProxyCommand, cfg.ProxyPort, d.logger)
			if err != nil {
				return Result{}, err
			}
			defer proxy.stop()
			env = append(env, "GOOGLE_GEMINI_BASE_URL="+proxy.baseURL)
		}
	}

	// ----- Child process -----
	outcome := d.runChild(runCtx, env, promptPath, logFile, responseFile)

	d.logger.Info("dispatch finished",
		zap.String("run_id", runID),
		zap.String("outcome", outcome.String()),
		zap.Int("exit_code", outcome.ExitCode()),
		zap.String("response", responsePath),
		zap.String("log", logPath),
	)

	// ----- Action summary -----
	if cfg.ActionLog && outcome == OutcomeSuccess {
		if err := WriteActionSummary(telemetryPath, filepath.Join(cfg.OutputDir, summaryFileName)); err != nil {
			d.logger.Warn("action summary failed", zap.Error(err))
		}
	}

	return Result{
		Outcome:      outcome,
		ResponsePath: responsePath,
		LogPath:      logPath,
	}, nil
}

// runChild starts the wrapped CLI and scans its merged output line by line.
// On the first quota line the child is killed and streaming stops.
func (d *Dispatcher) runChild(ctx context.Context, env []string, promptPath string, logFile, responseFile io.Writer) Outcome {
	cfg := d.cfg

	args := []string{"--model", cfg.Model}
	if !cfg.Interactive {
		args = append(args, "--approval-mode", "yolo")
	}

	cmd := exec.CommandContext(ctx, cfg.CLI, args...)
	cmd.Env = env

	promptFile, err := os.Open(promptPath)
	if err != nil {
		d.logger.Error("open prompt for child", zap.Error(err))
		return OutcomeFailure
	}
	defer promptFile.Close()
	cmd.Stdin = promptFile

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		d.logger.Error("stdout pipe", zap.Error(err))
		return OutcomeFailure
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		d.logger.Error("stderr pipe", zap.Error(err))
		return OutcomeFailure
	}

	if err := cmd.Start(); err != nil {
		d.logger.Error("start child process", zap.String("cli", cfg.CLI), zap.Error(err))
		return OutcomeFailure
	}

	type outLine struct {
		text     string
		isStderr bool
	}

	lines := make(chan outLine, 256)
	var wg sync.WaitGroup

	scanPipe := func(r io.Reader, isStderr bool) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- outLine{text: scanner.Text(), isStderr: isStderr}
		}
	}

	wg.Add(2)
	go scanPipe(stdout, false)
	go scanPipe(stderr, true)
	go func() {
		wg.Wait()
		close(lines)
	}()

	quotaHit := false
	fatalHit := false

	for line := range lines {
		if quotaHit {
			// Streaming stopped; drain so the scanners can finish.
			continue
		}

		fmt.Fprintln(logFile, line.text)
		if !line.isStderr {
			fmt.Fprintln(responseFile, line.text)
		}

		switch d.classifier.Classify(line.text) {
		case LineQuota:
			quotaHit = true
			d.logger.Warn("quota exhaustion detected, killing child",
				zap.String("line", line.text),
			)
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		case LineFatal:
			fatalHit = true
			d.logger.Error("fatal error in child output",
				zap.String("line", line.text),
			)
		}
	}

	waitErr := cmd.Wait()

	switch {
	case quotaHit:
		return OutcomeQuotaExhausted
	case ctx.Err() == context.DeadlineExceeded:
		d.logger.Error("child process timed out", zap.Duration("timeout", cfg.Timeout))
		return OutcomeTimeout
	case waitErr != nil:
		d.logger.Error("child process failed", zap.Error(waitErr))
		return OutcomeFailure
	case fatalHit:
		return OutcomeFailure
	default:
		return OutcomeSuccess
	}
}

// childEnv builds the child environment: current env plus the backend
// selection flags the wrapped CLI understands.
func (d *Dispatcher) childEnv() []string {
	env := os.Environ()
	env = append(env,
		"GOOGLE_GENAI_USE_VERTEXAI="+boolEnv(d.cfg.UseVertex),
		"GOOGLE_GENAI_USE_GCA="+boolEnv(d.cfg.UseCodeAssist),
	)
	return env
}

func boolEnv(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// removeStaleOutputs deletes the fixed-name output files from a previous
// run. Timestamped execution logs are kept.
func (d *Dispatcher) removeStaleOutputs() {
	for _, name := range []string{
		promptFileName,
		responseFileName,
		telemetryFileName,
		summaryFileName,
		settingsFileName,
	} {
		path := filepath.Join(d.cfg.OutputDir, name)
		if err := os.Remove(path); err == nil {
			d.logger.Debug("removed stale output", zap.String("path", path))
		}
	}
}
