//go:build !linux && !darwin

package main

import (
	"os"
)

var (
	signalsToHandle = []os.Signal{
		os.Interrupt,
	}
)
