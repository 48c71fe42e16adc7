package build

import "strings"

var (
	Version = "dev"
	AppName = "PharmaBoost"
	Slug    = ""
)

func init() {
	if Slug == "" {
		Slug = strings.ToLower(AppName)
	}
}
