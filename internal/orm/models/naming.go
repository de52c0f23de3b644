package models

import (
	"fmt"
	"strings"
)

// ContactKey is the dataset key the contact model is returned under
const ContactKey = "contact"

// FormatDatabaseName returns the versioned database name of a volume
func FormatDatabaseName(alignedVolume string, version int) string {
	return fmt.Sprintf("%s_v%d", alignedVolume, version)
}

// FormatVersionDBURI replaces the database of a connection URI with the
// versioned database of the volume.
func FormatVersionDBURI(sqlURI, alignedVolume string, version int) string {
	parts := strings.Split(sqlURI, "/")
	base := strings.Join(parts[:len(parts)-1], "/")
	return base + "/" + FormatDatabaseName(alignedVolume, version)
}

// ContactTableName returns the contact table of a volume
func ContactTableName(alignedVolume string) string {
	return alignedVolume + "__contact"
}
