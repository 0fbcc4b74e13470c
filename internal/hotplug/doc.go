// Package hotplug watches udev netlink events for debug probes being plugged
// in or removed so the CLI can refresh its probe list without polling.
package hotplug
