// Package audio implements the repeater's audio pipeline: continuous
// capture into the pre-roll ring, recording sessions, gain scaling and
// transient playback runs.
package audio
