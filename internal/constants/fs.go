package constants

import "os"

const (
	// DefaultFilePermissions sets the default permissions for regular files: (rw-r--r--).
	// Owner: read and write;
	// Group: read;
	// Others: read.
	DefaultFilePermissions os.FileMode = 0o644

	// DefaultFolderPermissions sets the default permissions for regular folders: (rwxr-xr-x).
	// Owner: read, write, and execute;
	// Group: read and execute;
	// Others: read and execute.
	DefaultFolderPermissions os.FileMode = 0o755
)

const (
	// JobsFolderName is the storage subfolder holding per-job working directories.
	JobsFolderName = ".jobs"

	// PartFileSuffix marks files that are still being written.
	PartFileSuffix = ".part"
)

// File extension constants.
const (
	ExtensionMP3  = ".mp3"
	ExtensionM4A  = ".m4a"
	ExtensionZIP  = ".zip"
	ExtensionMP4  = ".mp4"
	ExtensionWEBM = ".webm"
)

// DefaultMimeType is served for files whose extension is not recognized.
const DefaultMimeType = "application/octet-stream"
