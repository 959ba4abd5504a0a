package main

import (
	"os"

	"github.com/ZhengGong-hub/equity-longshort-backtester/cmd/backtester/commands"
)

// main is the entry point for the backtester CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/backtester [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
