//go:build devauth

package config

// Development builds opt in with -tags devauth.
const devBypassAllowed = true
