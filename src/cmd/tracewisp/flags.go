// FILE: tracewisp/src/cmd/tracewisp/flags.go
package main

import "strings"

// extractConfigFlag removes -c/--config from the arguments handed to the
// config loader, which knows nothing about the config file location itself
func extractConfigFlag(args []string) (string, []string) {
	var path string
	rest := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-c" || arg == "--config" || arg == "-config":
			if i+1 < len(args) {
				path = args[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--config="):
			path = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "-c="):
			path = strings.TrimPrefix(arg, "-c=")
		default:
			rest = append(rest, arg)
		}
	}
	return path, rest
}
