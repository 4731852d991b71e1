// Package fsutil holds the filesystem helpers shared by the installer, the
// config layer and the backup writer.
package fsutil

// File and directory permission constants.
const (
	FileModeDefault = 0o644 // -rw-r--r--
	DirModeDefault  = 0o755 // drwxr-xr-x
)
