//go:build !devauth

package config

// Production builds: the development bypass cannot be selected.
const devBypassAllowed = false
