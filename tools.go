//go:build tools

// Package bookmate tracks tool dependencies such as mockgen in go.mod.
package bookmate

import (
	_ "go.uber.org/mock/mockgen"
)
