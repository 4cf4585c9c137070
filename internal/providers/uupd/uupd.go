// Package uupd drives the uupd aggregator, which itself updates the OS image,
// flatpaks, brew and distrobox, and rescales its nested progress stream.
package uupd

import (
	"context"

	"go.uber.org/zap"

	"github.com/renovatio/renovatio/internal/execute"
	"github.com/renovatio/renovatio/internal/logging"
	"github.com/renovatio/renovatio/internal/normalizer"
	"github.com/renovatio/renovatio/internal/providers"
	"github.com/renovatio/renovatio/pkg/sdk"
)

const Name = "uupd"

// PolicyEnv selects the normalizer policy of the loaded plugin.
const PolicyEnv = "RENOVATIO_NORMALIZER_POLICY"

// Provider runs `uupd --json`. It is exclusive.
type Provider struct {
	runner execute.Runner
	logger *zap.Logger
	policy normalizer.Policy

	// Elevate wraps privileged commands.
	Elevate execute.Elevator
}

// New creates the provider.
func New(runner execute.Runner, policy normalizer.Policy, logger *zap.Logger) *Provider {
	return &Provider{
		runner:  runner,
		logger:  logging.Component(logger, Name),
		policy:  policy,
		Elevate: execute.Elevated,
	}
}

func (p *Provider) Name() string { return Name }
func (p *Provider) Description() string {
	return "uupd updates bootc, rpm-ostree, flatpak, brew, and distrobox."
}
func (p *Provider) Version() string { return providers.Version }

func (p *Provider) Conflicts(other string) bool {
	return sdk.ConflictsWithAll(other)
}

func (p *Provider) Update(ctx context.Context, tx sdk.Sender) bool {
	r := providers.NewReporter(Name, tx)
	norm := normalizer.New(Name, p.policy)

	elevate := p.Elevate
	if elevate == nil {
		elevate = execute.AsIs
	}
	name, args := elevate("uupd", "--json")

	res, err := p.runner.Stream(ctx, func(line []byte) {
		if norm.Done() {
			return
		}
		rec, err := normalizer.Parse(line)
		if err != nil {
			p.logger.Debug("ignoring non-progress line", zap.ByteString("line", line))
			return
		}
		if rec.Level == "ERROR" {
			p.logger.Warn("uupd reported an error", zap.String("msg", rec.Msg), zap.String("title", rec.Title))
		}
		out, _ := norm.Next(rec)
		r.Send(out)
	}, name, args...)

	if err != nil || !res.Success() {
		return r.Fail("uupd failed", res, err)
	}
	if !norm.Done() {
		return r.Done(normalizer.CompleteMessage, false)
	}
	return true
}
