package content

type Platform struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	CharLimit   int    `json:"char_limit"`
	Description string `json:"description"`
	BestFor     string `json:"best_for"`
}

var catalog = []Platform{
	{ID: "instagram", Name: "Instagram", Icon: "📷", CharLimit: 2200, Description: "Visual storytelling with images", BestFor: "Visual content, lifestyle, behind-the-scenes"},
	{ID: "facebook", Name: "Facebook", Icon: "👥", CharLimit: 63206, Description: "Community engagement and detailed posts", BestFor: "Detailed stories, community building"},
	{ID: "twitter", Name: "Twitter/X", Icon: "🐦", CharLimit: 280, Description: "Short, punchy updates", BestFor: "Quick updates, announcements"},
	{ID: "linkedin", Name: "LinkedIn", Icon: "💼", CharLimit: 3000, Description: "Professional networking", BestFor: "Business stories, craftsmanship"},
	{ID: "youtube", Name: "YouTube", Icon: "🎥", CharLimit: 5000, Description: "Video descriptions", BestFor: "Tutorial descriptions, video content"},
}

// DefaultPlatforms are used when a request names none.
var DefaultPlatforms = []string{"instagram", "facebook"}

func Catalog() []Platform {
	out := make([]Platform, len(catalog))
	copy(out, catalog)
	return out
}

func Lookup(id string) (Platform, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Platform{}, false
}
