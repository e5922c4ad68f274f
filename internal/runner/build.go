package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	log "github.com/sirupsen/logrus"
)

// EnsureExecutable checks the simulator exists in workDir. When it does not
// and a build command is given, the command is run once in workDir and the
// check repeated.
func EnsureExecutable(ctx context.Context, workDir, exe string, build []string) error {
	path := resolve(workDir, exe)
	if isExecutable(path) {
		return nil
	}
	if len(build) == 0 {
		return fmt.Errorf("%w: %s", ErrExecutableMissing, path)
	}

	log.WithFields(log.Fields{"executable": path, "build": build}).Info("simulator not found, building it")
	cmd := exec.CommandContext(ctx, build[0], build[1:]...)
	cmd.Dir = workDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		log.WithError(err).WithField("output", out.String()).Error("simulator build failed")
		return fmt.Errorf("%w: %s (build: %v)", ErrExecutableMissing, path, err)
	}

	if !isExecutable(path) {
		return fmt.Errorf("%w: %s still missing after build", ErrExecutableMissing, path)
	}
	return nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0111 != 0
}
