package main

// Compile-time configuration. The builtin patch descriptors are written
// against the exact upstream build this digest pins; bump both together when
// tracking a new OGLight release.
const (
	defaultSourceURL      = "https://update.greasyfork.org/scripts/514909/OGLight.user.js"
	defaultExpectedSHA256 = "371795e1a20f04040c00fc9568b92fe536960aa115a49d406f3ae60a6405b432"
	defaultOutputFile     = "OGLight_Ninja.user.js"

	// supportedUpstream is the OGLight release the builtin patchset targets.
	supportedUpstream = "5.3.3"
)
