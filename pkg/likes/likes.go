// Package likes reads tweet ids out of a Twitter data export.
//
// The export's like.js is a JavaScript assignment wrapping a JSON array of
// {"like": {"tweetId": "...", ...}} objects. It is scanned line by line with
// a pattern rather than decoded, so a truncated or hand-edited export still
// yields every id it contains.
package likes

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"tweetvault/pkg/storage"
)

var tweetIDPattern = regexp.MustCompile(`"tweetId"\s*:\s*"(\d+)"`)

// maxLineSize bounds a single line of the export; minified exports put the
// whole array on one line.
const maxLineSize = 64 * 1024 * 1024

// Parse returns the tweet ids found in r, de-duplicated, in first-seen order
func Parse(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	seen := make(map[string]struct{})
	var ids []string
	for scanner.Scan() {
		for _, m := range tweetIDPattern.FindAllSubmatch(scanner.Bytes(), -1) {
			id := string(m[1])
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if err := scanner.Err(); err != nil {
		return ids, fmt.Errorf("failed to read likes: %w", err)
	}
	return ids, nil
}

// ParseFile opens path and parses it
func ParseFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open likes file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// SplitIDs turns command-line input such as "1,2 3" into a de-duplicated
// id list. Empty fields are dropped. Fields that are not numeric ids are
// returned in rejected, since an id names a directory under the output
// root.
func SplitIDs(args ...string) (ids, rejected []string) {
	seen := make(map[string]struct{})
	for _, arg := range args {
		fields := strings.FieldsFunc(arg, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})
		for _, id := range fields {
			if !storage.IsNumericID(id) {
				rejected = append(rejected, id)
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, rejected
}
