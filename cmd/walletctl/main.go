// Package main is walletctl, the operator CLI for the wallet engine.
//
// Usage:
//
//	walletctl migrate
//	walletctl token --subject svc-compute --role SERVICE
//	walletctl root-deposit --project p1 --category cpu --provider hpc --amount 100000
//	walletctl openapi --yaml --output openapi.yaml
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
