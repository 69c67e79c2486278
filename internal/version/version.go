package version

// Version is the current version of the sync tool.
// Can be overridden at build time with -ldflags "-X ...version.Version=..."
var Version = "1.2.0"

// Name is the application name.
const Name = "oracle-feishu-sync"

// Description is a short description of the application.
const Description = "Resumable Oracle to Feishu Bitable synchronization"
