// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The pipeline controller owns job lifecycles, the watcher feeds the
// spool directory into it, and the settings service maps stored
// configuration onto both.
package services
