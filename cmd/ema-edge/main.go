// Command ema-edge is a full-duplex voice client for realtime speech APIs.
//
// Usage:
//
//	ema-edge [flags] <command>
//
// Commands:
//
//	run         - talk to the configured realtime service
//	devices     - list audio capture and playback devices
//	config      - print the configuration or its JSON schema
//	mockserver  - run a local realtime stand-in
package main

import (
	"fmt"
	"os"

	"github.com/koscakluka/ema-edge/cmd/ema-edge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
