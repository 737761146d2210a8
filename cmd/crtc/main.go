package main

import (
	"github.com/crtc-go/crtc/internal/cli"
)

func main() {
	cli.Execute()
}
