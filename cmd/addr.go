package cmd

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// defaultServeAddr keeps docket on loopback unless asked otherwise; the
// HTTP API has no auth beyond the uid cookie, so binding wide open is an
// explicit choice.
const defaultServeAddr = "127.0.0.1:3400"

// parseServeAddr resolves the listen address for `docket serve` from the
// arguments after the subcommand. Both a bare positional (`docket serve
// :8080`) and the -addr / --addr flag forms are accepted; the positional,
// when present, seeds the flag default so an explicit flag still wins.
func parseServeAddr(args []string) (string, error) {
	addr := defaultServeAddr
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		addr = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.StringVar(&addr, "addr", addr, "listen address (host:port)")
	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("parsing serve flags: %w", err)
	}

	if err := validateAddr(addr); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return addr, nil
}

// validateAddr checks that addr is a usable host:port pair. The host may
// be empty (all interfaces), "localhost", or anything net.Listen would
// resolve; only obviously broken values are rejected here.
func validateAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("must be in host:port format: %w", err)
	}
	if err := validateHost(host); err != nil {
		return err
	}
	return validatePort(port)
}

func validateHost(host string) error {
	if host == "" || host == "localhost" {
		return nil
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	// Hostnames are left to the resolver, but whitespace never resolves.
	if strings.ContainsAny(host, " \t\n") {
		return fmt.Errorf("invalid host: %s", host)
	}
	return nil
}

func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("port is required")
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric: %w", err)
	}
	if n < 0 || n > 65535 {
		return fmt.Errorf("port must be 0-65535 (0 = auto-assign), got %d", n)
	}
	return nil
}
