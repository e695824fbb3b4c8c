// Package handlers implements the gateway's built-in commands and
// registers them with a command.Registry.
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/mail-gateway/internal/command"
	"github.com/nhle/mail-gateway/internal/mail"
)

// Command names.
const (
	NameHealth        = "health"
	NameDeviceHealth  = "device_health"
	NameCheckCampusIP = "check_campus_ip"
	NameHelp          = "help"
)

// Deps are the collaborators the built-in commands use.
type Deps struct {
	Sender     mail.Sender
	Recipients []string
	FromName   string
	Location   *time.Location

	DeviceHost string
	Pinger     Pinger

	Relay *RelayClient

	Now func() time.Time
}

// RegisterAll registers every built-in command on reg.
func RegisterAll(reg *command.Registry, deps Deps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Pinger == nil {
		deps.Pinger = ExecPinger{}
	}

	reg.Register(NameHealth, Health(deps))
	reg.Register(NameDeviceHealth, DeviceHealth(deps))
	if deps.Relay != nil {
		reg.Register(NameCheckCampusIP, CheckCampusIP(deps))
	}
	reg.Register(NameHelp, Help(reg))
}

// Help lists the registered command names.
func Help(reg *command.Registry) command.Handler {
	return func(_ context.Context, _ ...string) (any, error) {
		return map[string]any{"commands": reg.Names()}, nil
	}
}

// Health emails a "service online" report to the notify recipients.
func Health(deps Deps) command.Handler {
	return func(ctx context.Context, _ ...string) (any, error) {
		ts := deps.Now().In(deps.Location).Format(time.DateTime)
		title := "Email Service 邮件服务在线检查"

		results, err := deps.Sender.Send(ctx, mail.Message{
			Subject:  "Email Service - 邮件服务在线检查",
			Text:     statusText(title, ts, "邮件服务状态", "在线"),
			HTML:     statusHTML(title, ts, "邮件服务状态", "在线"),
			FromName: deps.FromName,
			To:       deps.Recipients,
		})
		if err != nil {
			return nil, fmt.Errorf("sending health report: %w", err)
		}

		return map[string]any{"result": results}, nil
	}
}

func statusText(title, ts, label, state string) string {
	return fmt.Sprintf("%s\n\n时间: %s \n\n%s: %s\n", title, ts, label, state)
}

func statusHTML(title, ts, label, state string) string {
	return fmt.Sprintf(
		"<h3>%s</h3>\n<p><b>时间: </b>%s</p>\n<p><b>%s: </b>%s</p>\n",
		title, ts, label, state,
	)
}
