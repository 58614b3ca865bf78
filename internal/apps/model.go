package apps

import "time"

// App records how an installed app package is signed.
type App struct {
	ID          string
	PackageName string
	// Fingerprints are SHA-256 certificate fingerprints in "AB:CD:..." form.
	Fingerprints    []string
	MultipleSigners bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
