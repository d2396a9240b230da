// Package tui renders a discovery session in the terminal with bubbletea.
//
// The screen is a device list, one entry per device with the caption and
// bond marker on the first line and the address below. A spinner runs while
// discovery is active, the menu bar offers Scan or Stop and About, notices
// appear as toasts, and Enter opens the item dialog for the selected device.
// Each new device scrolls the list so it is visible.
//
// Prompter answers capability requests from the permission gate with a modal
// question, one capability at a time.
package tui
