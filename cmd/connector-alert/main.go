// Command connector-alert watches the connector package table and alerts
// when too many packages are pending.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
