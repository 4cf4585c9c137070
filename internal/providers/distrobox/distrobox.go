// Package distrobox upgrades every distrobox container.
package distrobox

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/renovatio/renovatio/internal/execute"
	"github.com/renovatio/renovatio/internal/logging"
	"github.com/renovatio/renovatio/internal/providers"
	"github.com/renovatio/renovatio/pkg/sdk"
)

const Name = "distrobox"

// Provider runs `distrobox upgrade` per container.
type Provider struct {
	runner execute.Runner
	logger *zap.Logger
}

// New creates the provider.
func New(runner execute.Runner, logger *zap.Logger) *Provider {
	return &Provider{runner: runner, logger: logging.Component(logger, Name)}
}

func (p *Provider) Name() string        { return Name }
func (p *Provider) Description() string { return "Update distrobox containers." }
func (p *Provider) Version() string     { return providers.Version }

func (p *Provider) Conflicts(other string) bool {
	return other == "uupd"
}

func (p *Provider) Update(ctx context.Context, tx sdk.Sender) bool {
	r := providers.NewReporter(Name, tx)

	r.Pulse("Listing distrobox containers...")
	res, err := p.runner.Run(ctx, "distrobox", "list", "--no-color")
	if err != nil || !res.Success() {
		return r.Fail("Failed to list distrobox containers", res, err)
	}

	boxes := ParseList(res.Stdout)
	if len(boxes) == 0 {
		return r.Done("No distrobox containers found.", false)
	}

	failed := 0
	for i, box := range boxes {
		r.Status(providers.Step(0, i, len(boxes)), fmt.Sprintf("Upgrading distrobox %s...", box))

		res, err := p.runner.Run(ctx, "distrobox", "upgrade", box)
		if err != nil || !res.Success() {
			failed++
			p.logger.Warn("distrobox upgrade failed", zap.String("container", box), zap.Int("exit_code", res.ExitCode), zap.Error(err))
			r.Warn(fmt.Sprintf("Failed to upgrade distrobox %s", box), res, err)
			continue
		}
		r.Output(providers.Step(0, i+1, len(boxes)), fmt.Sprintf("Upgraded distrobox %s", box), res)
	}

	if failed > 0 {
		return r.Fail(fmt.Sprintf("%d of %d containers failed to upgrade", failed, len(boxes)), execute.Result{}, nil)
	}
	return r.Done("Upgrade completed!", false)
}

// ParseList extracts container names from `distrobox list --no-color`, whose
// output is a table of "ID | NAME | STATUS | IMAGE" rows under a header.
func ParseList(out string) []string {
	var names []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "|")
		if len(fields) < 2 {
			continue
		}
		id := strings.TrimSpace(fields[0])
		name := strings.TrimSpace(fields[1])
		if name == "" || (strings.EqualFold(id, "ID") && strings.EqualFold(name, "NAME")) {
			continue
		}
		names = append(names, name)
	}
	return names
}
