package transfer

import (
	"strings"
)

// nameMarker separates the source URL from the filename it carries.
const nameMarker = "&name="

// Resource is a remote item to be archived. Two resources with the same
// Filename are the same logical item.
type Resource struct {
	URL      string
	Filename string
}

// ParseResource derives the staging filename from a source URL. The filename is
// everything after the "&name=" marker. Filenames must be plain base names: they
// cannot contain path separators or start with a dot, which is reserved for
// in-flight staging files.
func ParseResource(rawURL string) (Resource, error) {
	rawURL = strings.TrimSpace(rawURL)

	_, name, found := strings.Cut(rawURL, nameMarker)
	if !found {
		return Resource{}, &InvalidResourceDescriptorError{URL: rawURL, Reason: "missing " + nameMarker + " parameter"}
	}

	switch {
	case name == "":
		return Resource{}, &InvalidResourceDescriptorError{URL: rawURL, Reason: "empty filename"}
	case strings.ContainsAny(name, `/\`):
		return Resource{}, &InvalidResourceDescriptorError{URL: rawURL, Reason: "filename contains a path separator"}
	case strings.HasPrefix(name, "."):
		return Resource{}, &InvalidResourceDescriptorError{URL: rawURL, Reason: "filename starts with a dot"}
	}

	return Resource{URL: rawURL, Filename: name}, nil
}
