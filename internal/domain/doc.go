// Package domain contains the core entities shared by every crashship layer.
//
// It has no dependencies on the filesystem, HTTP or logging and holds only the
// types that cross package boundaries:
//
//   - [CrashFile]: one file in the crash directory, decoded from its name
//   - [UploadRecord]: one line of the upload log
//   - [Decision]: the consent verdict for a pending report
package domain
