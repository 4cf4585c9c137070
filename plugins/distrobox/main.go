// Command distrobox is the distrobox update provider, built with
//
//	go build -buildmode=plugin -o distrobox.so ./plugins/distrobox
package main

import (
	"go.uber.org/zap"

	"github.com/renovatio/renovatio/internal/execute"
	"github.com/renovatio/renovatio/internal/providers/distrobox"
	"github.com/renovatio/renovatio/pkg/sdk"
)

// ABIVersion is checked by the loader before NewProvider is called.
var ABIVersion = sdk.ABIVersion

// NewProvider is the factory resolved by the loader.
func NewProvider() sdk.Provider {
	logger := zap.L()
	return distrobox.New(execute.NewExec(logger), logger)
}

func main() {}
