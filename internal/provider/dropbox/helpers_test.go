package dropbox

import (
	"slices"
	"strconv"
	"strings"
)

func encodeCursor(dir string, offset int) string {
	return strconv.Itoa(offset) + ":" + dir
}

func decodeCursor(c string) (string, int) {
	n, dir, _ := strings.Cut(c, ":")
	offset, _ := strconv.Atoi(n)

	return dir, offset
}

func sortEntries(entries []map[string]string) {
	slices.SortFunc(entries, func(a, b map[string]string) int {
		return strings.Compare(a["name"], b["name"])
	})
}
