// Command uupd is the uupd update provider, built with
//
//	go build -buildmode=plugin -o uupd.so ./plugins/uupd
package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/renovatio/renovatio/internal/execute"
	"github.com/renovatio/renovatio/internal/normalizer"
	"github.com/renovatio/renovatio/internal/providers/uupd"
	"github.com/renovatio/renovatio/pkg/sdk"
)

// ABIVersion is checked by the loader before NewProvider is called.
var ABIVersion = sdk.ABIVersion

// NewProvider is the factory resolved by the loader. The normalizer policy is
// taken from the host's environment.
func NewProvider() sdk.Provider {
	logger := zap.L()
	policy := normalizer.ParsePolicy(os.Getenv(uupd.PolicyEnv))
	return uupd.New(execute.NewExec(logger), policy, logger)
}

func main() {}
