package url

import (
	"fmt"
	"net/url"
)

func Completed(base string) string {
	return fmt.Sprintf("%s/api/v1/state/completed/", base)
}

func Failed(base string) string {
	return fmt.Sprintf("%s/api/v1/state/failed/", base)
}

func Problem(base string, id string) string {
	return fmt.Sprintf("%s/api/v1/problem/%s/", base, url.PathEscape(id))
}

func NextJob(base string) string {
	return fmt.Sprintf("%s/api/v1/schedule/next/", base)
}
