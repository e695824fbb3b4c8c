package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/nhle/mail-gateway/internal/command"
	"github.com/nhle/mail-gateway/internal/mail"
)

// PingResult is the outcome of a single reachability check.
type PingResult struct {
	OK     bool
	Stdout string
	Stderr string
}

// Pinger checks whether a host answers.
type Pinger interface {
	Ping(ctx context.Context, host string) (PingResult, error)
}

// ExecPinger runs the system ping binary once with a one second wait.
type ExecPinger struct{}

// Ping implements Pinger. A non-zero exit status is an unreachable host,
// not an error; an error means ping could not be run at all.
func (ExecPinger) Ping(ctx context.Context, host string) (PingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ping", "-c", "1", "-W", "1", host)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := PingResult{
		OK:     err == nil,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return res, fmt.Errorf("running ping: %w", err)
	}
	return res, nil
}

// DeviceHealth pings the configured device and, when it answers, emails
// an online report. An unreachable device or a failed send is reported
// in the result rather than as an error.
func DeviceHealth(deps Deps) command.Handler {
	return func(ctx context.Context, _ ...string) (any, error) {
		res, err := deps.Pinger.Ping(ctx, deps.DeviceHost)
		if err != nil {
			return map[string]any{
				"ok":    false,
				"error": err.Error(),
			}, nil
		}

		if !res.OK {
			return map[string]any{
				"ok":     false,
				"ping":   "failed",
				"stdout": res.Stdout,
				"stderr": res.Stderr,
			}, nil
		}

		ts := deps.Now().In(deps.Location).Format(time.DateTime)
		title := "Email Service 宿舍主机虚拟内网在线检查"

		results, err := deps.Sender.Send(ctx, mail.Message{
			Subject:  "Email Service - 宿舍主机虚拟内网在线检查",
			Text:     statusText(title, ts, "状态", "在线"),
			HTML:     statusHTML(title, ts, "状态", "在线"),
			FromName: deps.FromName,
			To:       deps.Recipients,
		})
		if err != nil {
			return map[string]any{
				"ok":    false,
				"error": fmt.Sprintf("sending device report: %v", err),
			}, nil
		}

		return map[string]any{
			"ok":           true,
			"ping":         "success",
			"mail_results": results,
		}, nil
	}
}
