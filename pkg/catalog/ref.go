package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/glorpus-work/addonctl/pkg/errutils"
)

var (
	infoPageRe = regexp.MustCompile(`^https://.*esoui\.com/downloads/info(\d+)-(.+)$`)
	fileInfoRe = regexp.MustCompile(`^https://.+esoui\.com/downloads/fileinfo\.php\?id=(\d+)$`)
)

// ParseAddonRef accepts a numeric add-on id or an add-on page URL and
// returns the catalog id.
func ParseAddonRef(ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if m := infoPageRe.FindStringSubmatch(ref); m != nil {
		ref = m[1]
	} else if m := fileInfoRe.FindStringSubmatch(ref); m != nil {
		ref = m[1]
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return 0, errutils.ErrInvalidAddonIDWithValue(ref)
	}
	return id, nil
}
