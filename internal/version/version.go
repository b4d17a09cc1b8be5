package version

// Version is the current release of the indexer binary
const Version = "1.0.0"
