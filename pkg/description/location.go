package description

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ResolveURL makes a description-document URL absolute against the
// LOCATION the device advertised. Devices disagree on whether the URLs
// they publish are absolute, rooted, or relative; handle all three.
func ResolveURL(location, ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	base, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("description: parse location %q: %w", location, err)
	}
	u := *base
	if strings.HasPrefix(ref, "/") {
		u.Path = ref
	} else {
		u.Path = path.Join(path.Dir(base.Path), ref)
	}
	u.RawQuery = ""
	return u.String(), nil
}
