package shell

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
)

// EnvBashPath is the environment variable that overrides bash discovery.
const EnvBashPath = "SHELLDON_BASH"

// FindBash locates a usable bash executable. Discovery order: explicit
// environment override, platform well-known install locations, PATH lookup,
// and finally a direct-invocation probe. Returns ErrBashNotFound when
// nothing usable is located.
func FindBash() (string, error) {
	if p := os.Getenv(EnvBashPath); p != "" {
		if isExecutable(p) {
			log.Info().Str("path", p).Msg("Using bash from " + EnvBashPath)
			return p, nil
		}
		log.Warn().Str("path", p).Msg(EnvBashPath + " is set but not executable, falling back to discovery")
	}

	for _, p := range wellKnownBashPaths() {
		if isExecutable(p) {
			log.Debug().Str("path", p).Msg("Found bash in well-known location")
			return p, nil
		}
	}

	if p, err := exec.LookPath("bash"); err == nil {
		log.Debug().Str("path", p).Msg("Found bash via PATH lookup")
		return p, nil
	}

	// Last resort: a bare "bash" may still resolve at spawn time even when
	// LookPath cannot see it. Probe once before trusting it.
	if probeBash("bash") {
		log.Warn().Msg("bash not found in common locations, relying on bare invocation")
		return "bash", nil
	}

	return "", ErrBashNotFound
}

// wellKnownBashPaths returns platform-specific install locations, most
// likely first.
func wellKnownBashPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{
			`C:\Program Files\Git\bin\bash.exe`,
			`C:\Program Files (x86)\Git\bin\bash.exe`,
			`C:\Program Files\Git\usr\bin\bash.exe`,
			`C:\Windows\System32\bash.exe`,
		}
	}
	return []string{
		"/bin/bash",
		"/usr/bin/bash",
		"/usr/local/bin/bash",
	}
}

// isExecutable reports whether path exists and is a runnable regular file.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0111 != 0
}

// probeBash checks that the candidate actually runs.
func probeBash(candidate string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return exec.CommandContext(ctx, candidate, "--version").Run() == nil
}
