// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// # Port Interfaces
//
//   - [FileSystem]: the handful of filesystem calls the crash directory makes
//   - [ReportSender]: uploads one crash report to the crash server
//   - [ConsentPolicy]: decides whether a pending report may be uploaded
//   - [UploadLog]: records completed uploads for the crash list
//   - [Logger]: structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// The core packages (internal/crashdir, internal/retention) and the application
// layer (internal/app) depend only on these interfaces. Adapters under
// internal/adapters provide the concrete implementations.
package ports
