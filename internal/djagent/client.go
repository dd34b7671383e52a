package djagent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout = 300 * time.Second
	DefaultRunner  = "uv"

	statusPrefix = "STATUS:"
	errorPrefix  = "ERROR:"
	stderrTail   = 5
)

// Result is the agent's successful reply.
type Result struct {
	MixPath    string
	Statistics map[string]any
}

type response struct {
	Status     string         `json:"status"`
	MixPath    string         `json:"mix_file_path"`
	Error      string         `json:"error"`
	Statistics map[string]any `json:"statistics"`
}

// Options configure a Client.
type Options struct {
	// Command is the program and leading arguments used to run the script,
	// "uv run" by default.
	Command []string
	Timeout time.Duration
	// Env is appended to the inherited environment.
	Env    []string
	Logger *zerolog.Logger
}

// Client runs the agent script once per mix.
type Client struct {
	script  string
	command []string
	timeout time.Duration
	env     []string
	log     zerolog.Logger
}

// NewClient checks that script exists.
func NewClient(script string, opts Options) (*Client, error) {
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("%w: agent script not found: %s", ErrAgent, script)
	}
	c := &Client{
		script:  script,
		command: opts.Command,
		timeout: opts.Timeout,
		env:     opts.Env,
		log:     log.Logger,
	}
	if len(c.command) == 0 {
		c.command = []string{DefaultRunner, "run"}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if opts.Logger != nil {
		c.log = *opts.Logger
	}
	c.log = c.log.With().Str("component", "djagent").Logger()
	return c, nil
}

// CreateMix validates req, runs the agent and returns the mix it produced.
// onStatus receives each STATUS: line from the agent as it arrives.
func (c *Client) CreateMix(ctx context.Context, req Request, onStatus func(string)) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	reqPath, err := writeRequest(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrAgent, err)
	}
	defer func() {
		if err := os.Remove(reqPath); err != nil {
			c.log.Warn().Err(err).Msg("removing request file")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := append(append([]string{}, c.command[1:]...), c.script, reqPath)
	cmd := exec.CommandContext(ctx, c.command[0], args...)
	cmd.Env = append(os.Environ(), c.env...)
	cmd.WaitDelay = 2 * time.Second
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	pr, pw := io.Pipe()
	cmd.Stderr = pw

	c.log.Info().Int("tracks", len(req.Tracks)).Msg("creating mix")
	if err := cmd.Start(); err != nil {
		pw.Close()
		if errors.Is(err, exec.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: %q command not found, make sure it is installed and on PATH", ErrAgent, c.command[0])
		}
		return Result{}, fmt.Errorf("%w: cannot start agent: %w", ErrAgent, err)
	}
	c.log.Info().Int("pid", cmd.Process.Pid).Msg("agent started")

	linesCh := make(chan []string, 1)
	go func() {
		lines := c.readStderr(pr, onStatus)
		io.Copy(io.Discard, pr)
		linesCh <- lines
	}()
	waitErr := cmd.Wait()
	pw.Close()
	lines := <-linesCh

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.log.Error().Dur("timeout", c.timeout).Msg("agent timed out")
		return Result{}, fmt.Errorf("%w after %s, try simpler instructions or fewer tracks", ErrTimeout, c.timeout)
	}
	if waitErr != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		c.log.Error().Err(waitErr).Msg("agent exited with error")
		return Result{}, fmt.Errorf("%w: %s", ErrAgent, classify(waitErr, lines))
	}
	return c.parseResponse(stdout.Bytes())
}

func writeRequest(req Request) (string, error) {
	f, err := os.CreateTemp("", "sigplay-mix-*.json")
	if err != nil {
		return "", fmt.Errorf("creating request file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(req); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("writing request file: %w", err)
	}
	return f.Name(), nil
}

// readStderr streams agent diagnostics until EOF and returns every line.
func (c *Client) readStderr(r io.Reader, onStatus func(string)) []string {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		lines = append(lines, line)
		switch {
		case strings.HasPrefix(line, statusPrefix):
			msg := strings.TrimSpace(strings.TrimPrefix(line, statusPrefix))
			c.log.Info().Str("status", msg).Msg("agent status")
			if onStatus != nil {
				onStatus(msg)
			}
		case strings.HasPrefix(line, errorPrefix):
			c.log.Error().Str("error", strings.TrimSpace(strings.TrimPrefix(line, errorPrefix))).Msg("agent error")
		default:
			c.log.Debug().Str("line", line).Msg("agent stderr")
		}
	}
	return lines
}

// classify turns a failed run into an actionable message.
func classify(waitErr error, lines []string) string {
	seen := func(match func(string) bool) bool {
		for _, l := range lines {
			if match(l) {
				return true
			}
		}
		return false
	}
	lower := func(subs ...string) func(string) bool {
		return func(l string) bool {
			l = strings.ToLower(l)
			for _, s := range subs {
				if strings.Contains(l, s) {
					return true
				}
			}
			return false
		}
	}

	switch {
	case seen(func(l string) bool { return strings.Contains(l, "OPENROUTER_API_KEY") }):
		return "OpenRouter API key not configured, set OPENROUTER_API_KEY (keys at https://openrouter.ai/keys)"
	case seen(func(l string) bool { return strings.Contains(l, "401") }) || seen(lower("unauthorized")):
		return "OpenRouter API key is invalid or expired, generate a new one at https://openrouter.ai/keys"
	case seen(lower("insufficient credits", "quota")):
		return "OpenRouter credits exhausted, add credits at https://openrouter.ai/credits"
	case seen(lower("model not found", "invalid model")):
		return "model not available on OpenRouter, choose another with OPENROUTER_MODEL (see https://openrouter.ai/models)"
	}

	detail := "unknown error"
	if len(lines) > 0 {
		detail = strings.Join(lines[max(0, len(lines)-stderrTail):], "\n")
	}
	code := -1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code = exitErr.ExitCode()
	}
	return fmt.Sprintf("exit code %d: %s", code, detail)
}

func (c *Client) parseResponse(out []byte) (Result, error) {
	var resp response
	if err := json.Unmarshal(bytes.TrimSpace(out), &resp); err != nil {
		c.log.Error().Err(err).Msg("parsing agent response")
		return Result{}, fmt.Errorf("%w: invalid response: %w", ErrAgent, err)
	}
	if resp.Status == "error" {
		msg := resp.Error
		if msg == "" {
			msg = "unknown error"
		}
		return Result{}, fmt.Errorf("%w: %s", ErrMixing, msg)
	}
	if resp.MixPath == "" {
		return Result{}, fmt.Errorf("%w: agent did not return a mix file path", ErrAgent)
	}
	if _, err := os.Stat(resp.MixPath); err != nil {
		return Result{}, fmt.Errorf("%w: mix file was not created: %s", ErrMixing, resp.MixPath)
	}
	c.log.Info().Str("mix", resp.MixPath).Msg("mix created")
	return Result{MixPath: resp.MixPath, Statistics: resp.Statistics}, nil
}
