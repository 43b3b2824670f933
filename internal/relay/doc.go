// Package relay implements the repeater state machine. It turns
// carrier-detect edges into capture sessions, retransmits each session
// after a settling delay, and schedules identification announcements,
// keeping the three activities mutually exclusive on the half-duplex
// channel.
package relay
