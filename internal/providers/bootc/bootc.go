// Package bootc updates a bootable container host through bootc.
package bootc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/renovatio/renovatio/internal/execute"
	"github.com/renovatio/renovatio/internal/logging"
	"github.com/renovatio/renovatio/internal/providers"
	"github.com/renovatio/renovatio/pkg/sdk"
)

const Name = "bootc"

// Host is the subset of `bootc status --json` the provider reads.
type Host struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
	Spec       struct {
		Image *ImageReference `json:"image"`
	} `json:"spec"`
	Status struct {
		Staged *BootEntry `json:"staged"`
		Booted *BootEntry `json:"booted"`
		Type   string     `json:"type"`
	} `json:"status"`
}

// ImageReference names a container image.
type ImageReference struct {
	Image     string `json:"image"`
	Transport string `json:"transport"`
}

// BootEntry is a deployment.
type BootEntry struct {
	Image        *ImageStatus `json:"image"`
	CachedUpdate *ImageStatus `json:"cachedUpdate"`
	Incompatible bool         `json:"incompatible"`
	Pinned       bool         `json:"pinned"`
}

// ImageStatus describes the image of a deployment.
type ImageStatus struct {
	Version     string `json:"version"`
	Timestamp   string `json:"timestamp"`
	ImageDigest string `json:"imageDigest"`
}

// ParseStatus decodes `bootc status --json`.
func ParseStatus(data []byte) (Host, error) {
	var h Host
	if err := json.Unmarshal(data, &h); err != nil {
		return Host{}, fmt.Errorf("decode bootc status: %w", err)
	}
	return h, nil
}

// PendingVersion returns the version waiting for a reboot, if any.
func (h Host) PendingVersion() (string, bool) {
	if s := h.Status.Staged; s != nil {
		if s.Image != nil {
			return s.Image.Version, true
		}
		return "", true
	}
	return "", false
}

// CachedVersion returns the version of an update already known to be available.
func (h Host) CachedVersion() string {
	if b := h.Status.Booted; b != nil && b.CachedUpdate != nil {
		return b.CachedUpdate.Version
	}
	return ""
}

// Provider upgrades the booted image. It is exclusive.
type Provider struct {
	runner execute.Runner
	logger *zap.Logger

	// Elevate wraps privileged commands.
	Elevate execute.Elevator
}

// New creates the provider.
func New(runner execute.Runner, logger *zap.Logger) *Provider {
	return &Provider{runner: runner, logger: logging.Component(logger, Name), Elevate: execute.Elevated}
}

func (p *Provider) Name() string        { return Name }
func (p *Provider) Description() string { return "Update the OS via bootc." }
func (p *Provider) Version() string     { return providers.Version }

func (p *Provider) Conflicts(other string) bool {
	return sdk.ConflictsWithAll(other)
}

func (p *Provider) Update(ctx context.Context, tx sdk.Sender) bool {
	r := providers.NewReporter(Name, tx)

	r.Pulse("Checking for updates...")
	res, err := p.run(ctx, "bootc", "status", "--json")
	if err != nil || !res.Success() {
		return r.Fail("Failed to read bootc status", res, err)
	}
	host, err := ParseStatus([]byte(res.Stdout))
	if err != nil {
		return r.Fail("Failed to read bootc status", res, err)
	}

	if version, ok := host.PendingVersion(); ok {
		return r.Done(pendingMessage(version), true)
	}

	msg := "Upgrading OS..."
	if v := host.CachedVersion(); v != "" {
		msg = fmt.Sprintf("Upgrading OS to %s...", v)
	}
	r.Status(10, msg)

	res, err = p.run(ctx, "bootc", "upgrade")
	if err != nil || !res.Success() {
		return r.Fail("Failed to upgrade OS", res, err)
	}
	r.Output(90, "Upgrade finished", res)

	if strings.Contains(res.Stdout, "No changes in") {
		return r.Done("No updates available", false)
	}
	p.logger.Info("upgrade staged", zap.String("version", host.CachedVersion()))
	return r.Done(pendingMessage(host.CachedVersion()), true)
}

func (p *Provider) run(ctx context.Context, name string, args ...string) (execute.Result, error) {
	elevate := p.Elevate
	if elevate == nil {
		elevate = execute.AsIs
	}
	name, args = elevate(name, args...)
	return p.runner.Run(ctx, name, args...)
}

func pendingMessage(version string) string {
	if version == "" {
		return "OS upgrade pending reboot"
	}
	return fmt.Sprintf("OS upgrade to %s pending reboot", version)
}
