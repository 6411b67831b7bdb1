package content

import (
	"fmt"
	"strings"

	"github.com/sjawhar/kalakaar/internal/session"
)

const systemPrompt = "You are an expert social media content creator specializing in handcrafted artisan products. " +
	"Create engaging, authentic posts that highlight craftsmanship and connect with audiences."

const notProvided = "Not provided"

var productFields = []struct {
	key   string
	title string
}{
	{"craft_type", "Craft Type"},
	{"product_name", "Product Name"},
	{"materials", "Materials"},
	{"process", "Process"},
	{"special_features", "Special Features"},
}

// RequiredFields must be answered before posts can be generated.
var RequiredFields = []string{"craft_type", "product_name"}

func ProductBlock(answers map[string]session.Answer) string {
	lines := make([]string, 0, len(productFields))
	for _, f := range productFields {
		value := notProvided
		if a, ok := answers[f.key]; ok && a.Reference != nil && strings.TrimSpace(*a.Reference) != "" {
			value = strings.TrimSpace(*a.Reference)
		}
		lines = append(lines, fmt.Sprintf("**%s**: %s", f.title, value))
	}
	return strings.Join(lines, "\n")
}

// MissingFields lists required fields with no recorded answer.
func MissingFields(answers map[string]session.Answer) []string {
	var missing []string
	for _, key := range RequiredFields {
		if _, ok := answers[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

func userPrompt(p Platform, product string) string {
	return fmt.Sprintf(`You are an expert content creator helping an artisan (Kalakaar) generate engaging social media posts.

Create a compelling and authentic %[1]s post for the following handcrafted product.
Analyze the visual details from the image (if provided) and weave them with the textual details below.

--- PRODUCT DETAILS ---
%[2]s
--- END DETAILS ---

Requirements:
- Platform: %[1]s (%[3]s)
- Character limit: %[4]d
- Style: %[5]s. Maintain an authentic, heartfelt, and personal tone.
- Include relevant emojis and hashtags based on the product, materials, and craft.
- The post must be engaging and encourage comments/shares.

Generate ONLY the post content, nothing else.`, p.Name, product, p.Description, p.CharLimit, p.BestFor)
}
