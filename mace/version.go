package mace

import "fmt"

// version information, set with -ldflags "-X" at build time.
var GITLASTTAG string
var GITLASTCOMMIT string

func Version() string {
	if GITLASTTAG == "" && GITLASTCOMMIT == "" {
		return "devel"
	}
	return fmt.Sprintf("%s/%s", GITLASTTAG, GITLASTCOMMIT)
}
