// Command brew is the brew update provider, built with
//
//	go build -buildmode=plugin -o brew.so ./plugins/brew
package main

import (
	"go.uber.org/zap"

	"github.com/renovatio/renovatio/internal/execute"
	"github.com/renovatio/renovatio/internal/providers/brew"
	"github.com/renovatio/renovatio/pkg/sdk"
)

// ABIVersion is checked by the loader before NewProvider is called.
var ABIVersion = sdk.ABIVersion

// NewProvider is the factory resolved by the loader.
func NewProvider() sdk.Provider {
	logger := zap.L()
	return brew.New(execute.NewExec(logger), logger)
}

func main() {}
