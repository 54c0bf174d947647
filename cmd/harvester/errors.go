package main

import "errors"

// errStartupProxyUnavailable marks the one startup failure that gets its
// own exit code: require_proxies is set but no proxy address is configured.
var errStartupProxyUnavailable = errors.New("proxy pool required but unavailable")

// exitCodeFor maps a top-level command error to the CLI's documented exit
// code. Every failure other than the startup proxy check is an
// undifferentiated runtime error.
func exitCodeFor(err error) int {
	if errors.Is(err, errStartupProxyUnavailable) {
		return exitProxyUnavailable
	}
	return exitRuntimeError
}
