// Package flatpak updates user and system flatpak installations.
package flatpak

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/renovatio/renovatio/internal/execute"
	"github.com/renovatio/renovatio/internal/logging"
	"github.com/renovatio/renovatio/internal/providers"
	"github.com/renovatio/renovatio/pkg/sdk"
)

const Name = "flatpak"

type installation struct {
	flag  string
	label string
}

var installations = []installation{
	{flag: "--user", label: "user"},
	{flag: "--system", label: "system"},
}

// Provider runs `flatpak update` for each installation.
type Provider struct {
	runner execute.Runner
	logger *zap.Logger
}

// New creates the provider.
func New(runner execute.Runner, logger *zap.Logger) *Provider {
	return &Provider{runner: runner, logger: logging.Component(logger, Name)}
}

func (p *Provider) Name() string        { return Name }
func (p *Provider) Description() string { return "Update user and system flatpaks." }
func (p *Provider) Version() string     { return providers.Version }

func (p *Provider) Conflicts(other string) bool {
	return other == "uupd"
}

// Update updates every installation even if an earlier one fails.
func (p *Provider) Update(ctx context.Context, tx sdk.Sender) bool {
	r := providers.NewReporter(Name, tx)

	var failed []string
	changed := false
	for i, inst := range installations {
		r.Status(providers.Step(0, i, len(installations)), "Installing updates ("+inst.label+")...")

		res, err := p.runner.Run(ctx, "flatpak", "update", inst.flag, "-y", "--noninteractive")
		if err != nil || !res.Success() {
			failed = append(failed, inst.label)
			p.logger.Warn("flatpak update failed", zap.String("installation", inst.label), zap.Int("exit_code", res.ExitCode), zap.Error(err))
			r.Warn("Failed to update "+inst.label+" flatpaks", res, err)
			continue
		}
		if !NothingToDo(res.Stdout) {
			changed = true
		}
		r.Output(providers.Step(0, i+1, len(installations)), "Updated "+inst.label+" flatpaks", res)
	}

	if len(failed) > 0 {
		return r.Fail("Failed to update "+strings.Join(failed, " and ")+" flatpaks", execute.Result{}, nil)
	}
	if !changed {
		return r.Done("Flatpaks are up to date.", false)
	}
	return r.Done("Finished!", false)
}

// NothingToDo reports whether flatpak found no updates.
func NothingToDo(stdout string) bool {
	return strings.Contains(stdout, "Nothing to do")
}
