// Package codec talks to the contract-codec helper, which owns every SCALE
// encoding concern: contract ABI values, runtime API arguments, events and
// extrinsics. Each operation runs the helper once with a JSON request on
// stdin and reads a JSON response from stdout.
package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-version"
	"go.uber.org/zap"

	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
)

// SupportedVersions is the range of helper releases speaking this protocol.
const SupportedVersions = ">= 0.4.0, < 1.0.0"

type request struct {
	Op     string `json:"op"`
	Params any    `json:"params"`
}

type response struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

type commandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Client runs the helper binary at Path.
type Client struct {
	Path string
	Log  *zap.Logger

	command  commandFunc
	verified bool
}

func New(path string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{Path: path, Log: log, command: exec.CommandContext}
}

// CheckVersion verifies the helper is installed and speaks a supported
// protocol version. It runs at most once per client.
func (c *Client) CheckVersion(ctx context.Context) error {
	if c.verified {
		return nil
	}
	var stdout bytes.Buffer
	cmd := c.command(ctx, c.Path, "--version")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("codec helper %q not found; install contract-codec or pass --codec", c.Path), err)
		}
		return clierr.Wrap(clierr.CodeUnavailable, "run codec helper --version", err)
	}
	fields := strings.Fields(stdout.String())
	if len(fields) == 0 {
		return clierr.New(clierr.CodeUnavailable, "codec helper reported no version")
	}
	got, err := version.NewVersion(fields[len(fields)-1])
	if err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "parse codec helper version", err)
	}
	constraint, err := version.NewConstraint(SupportedVersions)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "parse supported codec versions", err)
	}
	if !constraint.Check(got) {
		return clierr.New(clierr.CodeUnsupported, fmt.Sprintf("codec helper version %s is not supported (need %s)", got, SupportedVersions))
	}
	c.Log.Debug("codec helper", zap.String("path", c.Path), zap.Stringer("version", got))
	c.verified = true
	return nil
}

// Do runs one helper operation. Failures reported by the helper are returned
// with failCode; failures to run it are unavailable errors.
func (c *Client) Do(ctx context.Context, op string, params any, result any, failCode clierr.Code) error {
	if err := c.CheckVersion(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(request{Op: op, Params: params})
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "encode codec request", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := c.command(ctx, c.Path)
	cmd.Stdin = bytes.NewReader(body)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	c.Log.Debug("codec request", zap.String("op", op), zap.Int("bytes", len(body)))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("codec helper %s failed: %s", op, msg), err)
	}

	var resp response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("codec helper %s returned invalid JSON", op), err)
	}
	if resp.Status != "success" {
		msg := resp.Error
		if msg == "" {
			msg = "unknown error"
		}
		return clierr.New(failCode, fmt.Sprintf("%s: %s", op, msg))
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("decode codec helper %s result", op), err)
	}
	return nil
}
