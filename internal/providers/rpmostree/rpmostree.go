// Package rpmostree updates the OS image through rpm-ostree.
package rpmostree

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/renovatio/renovatio/internal/execute"
	"github.com/renovatio/renovatio/internal/logging"
	"github.com/renovatio/renovatio/internal/providers"
	"github.com/renovatio/renovatio/pkg/sdk"
)

const Name = "rpm-ostree"

// Provider downloads and stages an rpm-ostree deployment. It is exclusive:
// it must not run alongside any other provider.
type Provider struct {
	runner execute.Runner
	logger *zap.Logger
}

// New creates the provider.
func New(runner execute.Runner, logger *zap.Logger) *Provider {
	return &Provider{runner: runner, logger: logging.Component(logger, Name)}
}

func (p *Provider) Name() string        { return Name }
func (p *Provider) Description() string { return "Update the OS via rpm-ostree." }
func (p *Provider) Version() string     { return providers.Version }

func (p *Provider) Conflicts(other string) bool {
	return sdk.ConflictsWithAll(other)
}

// Update downloads first; a failed download ends this provider without
// attempting the upgrade.
func (p *Provider) Update(ctx context.Context, tx sdk.Sender) bool {
	r := providers.NewReporter(Name, tx)

	r.Pulse("Checking for updates...")
	res, err := p.runner.Run(ctx, "rpm-ostree", "upgrade", "--download-only")
	if err != nil || !res.Success() {
		return r.Fail("Failed to check/download updates", res, err)
	}
	if NoUpgrade(res.Stdout) {
		return r.Done("No updates available", false)
	}

	r.Output(50, "Installing OS update...", res)
	res, err = p.runner.Run(ctx, "rpm-ostree", "upgrade")
	if err != nil || !res.Success() {
		return r.Fail("Failed to install OS update", res, err)
	}

	if NoUpgrade(res.Stdout) {
		return r.Done("No updates available", false)
	}
	p.logger.Info("deployment staged")
	return r.Done("OS upgrade pending reboot", true)
}

// NoUpgrade reports whether rpm-ostree found nothing to do.
func NoUpgrade(stdout string) bool {
	return strings.Contains(stdout, "No upgrade available") || strings.Contains(stdout, "No change.")
}
