//go:build mage

package main

import (
	"fmt"
	"os/exec"

	"github.com/magefile/mage/sh"
)

const pandocImage = "pandoc/core:latest"

// Image pulls the pandoc image used by the container backend.
func Image() error {
	for _, rt := range []string{"docker", "podman"} {
		if _, err := exec.LookPath(rt); err != nil {
			continue
		}
		fmt.Printf("Pulling %s with %s\n", pandocImage, rt)
		return sh.RunV(rt, "pull", pandocImage)
	}
	return fmt.Errorf("no container runtime found: install docker or podman")
}
