package sandbox

import (
	"fmt"
	"strings"
)

// BranchName builds the branch name for a job attempt. The first attempt
// gets "<prefix>/<jobID>-<slug>"; retries append an "-r<attempt>" suffix
// so every attempt lands on a distinct branch.
func BranchName(prefix, jobID, title string, attempt int) string {
	name := prefix + "/" + jobID
	if slug := slugify(title); slug != "" {
		name += "-" + slug
	}
	if attempt > 1 {
		name += fmt.Sprintf("-r%d", attempt)
	}
	return name
}

func slugify(text string) string {
	slug := strings.ToLower(text)
	slug = strings.ReplaceAll(slug, " ", "-")

	// Remove non-alphanumeric characters except dashes
	var result strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	slug = result.String()

	// Limit length
	if len(slug) > 30 {
		slug = slug[:30]
	}

	return strings.TrimSuffix(slug, "-")
}
