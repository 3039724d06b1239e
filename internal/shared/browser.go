package shared

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// browserCommand returns the opener program and its arguments for target on goos.
func browserCommand(goos, target string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{target}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{target}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}, nil
	default:
		return "", nil, fmt.Errorf("%w: no browser opener for %s", ErrInvalidArgument, goos)
	}
}

// OpenBrowser hands an authorization URL to the system opener.
//
// Only http(s) URLs are accepted. The opener is killed if ctx ends before it exits, so a cancelled
// setup does not leave it behind.
func OpenBrowser(ctx context.Context, target string) error {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: not a browsable url %q", ErrInvalidArgument, target)
	}

	name, args, err := browserCommand(runtime.GOOS, u.String())
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	go cmd.Wait()
	return nil
}
