// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - InferenceEngine: Renders feature batches into output frames
//   - MediaSource: Supplies decoded audio samples and reference frames
//   - FrameSink: Receives ordered, muxed output frames
//   - JobStore: Job record persistence
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
