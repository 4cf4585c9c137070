// Package brew updates Homebrew formulae and casks.
package brew

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/renovatio/renovatio/internal/execute"
	"github.com/renovatio/renovatio/internal/logging"
	"github.com/renovatio/renovatio/internal/providers"
	"github.com/renovatio/renovatio/pkg/sdk"
)

const Name = "brew"

// Package is one entry of `brew outdated --json=v2`.
type Package struct {
	Name              string   `json:"name"`
	InstalledVersions []string `json:"installed_versions"`
	CurrentVersion    string   `json:"current_version"`
	Pinned            bool     `json:"pinned"`
	PinnedVersion     *string  `json:"pinned_version"`
}

// Outdated is the document printed by `brew outdated --json=v2`.
type Outdated struct {
	Formulae []Package `json:"formulae"`
	Casks    []Package `json:"casks"`
}

// Provider upgrades outdated formulae and casks one at a time.
type Provider struct {
	runner execute.Runner
	logger *zap.Logger
}

// New creates the provider.
func New(runner execute.Runner, logger *zap.Logger) *Provider {
	return &Provider{runner: runner, logger: logging.Component(logger, Name)}
}

func (p *Provider) Name() string        { return Name }
func (p *Provider) Description() string { return "Update and upgrade formulae and casks via brew." }
func (p *Provider) Version() string     { return providers.Version }

// Conflicts reports a conflict only with uupd, which already updates brew.
func (p *Provider) Conflicts(other string) bool {
	return other == "uupd"
}

func (p *Provider) Update(ctx context.Context, tx sdk.Sender) bool {
	r := providers.NewReporter(Name, tx)

	r.Status(5, "Updating brew...")
	res, err := p.runner.Run(ctx, "brew", "update")
	if err != nil || !res.Success() {
		return r.Fail("Failed to update brew", res, err)
	}

	r.Output(10, "Getting outdated packages...", res)
	res, err = p.runner.Run(ctx, "brew", "outdated", "--json=v2")
	if err != nil || !res.Success() {
		return r.Fail("Failed to list outdated packages", res, err)
	}
	outdated, err := ParseOutdated([]byte(res.Stdout))
	if err != nil {
		return r.Fail("Failed to read outdated packages", res, err)
	}

	type item struct {
		name string
		cask bool
	}
	var items []item
	for _, f := range outdated.Formulae {
		if f.Pinned {
			p.logger.Debug("skipping pinned formula", zap.String("formula", f.Name))
			continue
		}
		items = append(items, item{name: f.Name})
	}
	for _, c := range outdated.Casks {
		items = append(items, item{name: c.Name, cask: true})
	}

	if len(items) == 0 {
		return r.Done("Everything is up to date.", false)
	}

	failed := 0
	for i, it := range items {
		kind := "formula"
		args := []string{"upgrade", it.name}
		if it.cask {
			kind = "cask"
			args = []string{"upgrade", "--cask", it.name}
		}

		r.Status(providers.Step(10, i, len(items)), fmt.Sprintf("Upgrading %s %s...", kind, it.name))
		res, err := p.runner.Run(ctx, "brew", args...)
		if err != nil || !res.Success() {
			failed++
			p.logger.Warn("upgrade failed", zap.String(kind, it.name), zap.Int("exit_code", res.ExitCode), zap.Error(err))
			r.Warn(fmt.Sprintf("Failed to upgrade %s %s", kind, it.name), res, err)
			continue
		}
		r.Output(providers.Step(10, i+1, len(items)), fmt.Sprintf("Upgraded %s %s", kind, it.name), res)
	}

	if failed > 0 {
		return r.Fail(fmt.Sprintf("%d of %d packages failed to upgrade", failed, len(items)), execute.Result{}, nil)
	}
	return r.Done("Upgrade completed!", false)
}

// ParseOutdated decodes `brew outdated --json=v2` output.
func ParseOutdated(data []byte) (Outdated, error) {
	var o Outdated
	if err := json.Unmarshal(data, &o); err != nil {
		return Outdated{}, fmt.Errorf("decode brew outdated: %w", err)
	}
	return o, nil
}
