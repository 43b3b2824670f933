// Package hardware bridges to the CM108 USB sound adapter whose GPIO
// lines carry the carrier-detect input and the PTT output.
package hardware
