package tmdb

// ImageBaseURL serves posters at the width the site displays
const ImageBaseURL = "https://image.tmdb.org/t/p/w500"

// DirectorOf returns the first crew member credited as Director
func DirectorOf(credits *Credits) string {
	if credits == nil {
		return ""
	}
	for _, member := range credits.Crew {
		if member.Job == "Director" {
			return member.Name
		}
	}
	return ""
}

// CreatorOf returns the first credited creator
func CreatorOf(createdBy []Creator) string {
	if len(createdBy) == 0 {
		return ""
	}
	return createdBy[0].Name
}

// ImageURL returns the full poster URL for a TMDB image path
func ImageURL(path string) string {
	if path == "" {
		return ""
	}
	return ImageBaseURL + path
}
