package generators

import (
	"fmt"
	"strings"
)

const (
	businessPlanSystem = "You are a business consultant. Answer with a single JSON object using the keys " +
		"executiveSummary, marketAnalysis, marketingStrategy, financialProjections (strings) and " +
		"milestones (array of objects with title, timeline, detail)."
	websiteSystem = "You are a website copywriter. Answer with a single JSON object using the keys " +
		"hero {headline, subheadline}, about (string), services (array of {title, description}), " +
		"cta {text, buttonLabel} and seo {title, description, keywords}."
)

func businessPlanPrompt(in BusinessPlanInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a business plan for %q, a business in the %s industry.\n", in.BusinessName, in.Industry)
	fmt.Fprintf(&b, "Description: %s\n", in.Description)
	writeOptional(&b, "Target market", in.TargetMarket)
	writeOptional(&b, "Goals", in.Goals)
	writeOptional(&b, "Starting budget", in.Budget)
	return b.String()
}

func websitePrompt(in WebsiteContentInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write homepage copy for %q, a business in the %s industry.\n", in.BusinessName, in.Industry)
	fmt.Fprintf(&b, "Description: %s\n", in.Description)
	tone := in.Tone
	if tone == "" {
		tone = "friendly and professional"
	}
	fmt.Fprintf(&b, "Tone: %s\n", tone)
	if len(in.Services) > 0 {
		fmt.Fprintf(&b, "Services offered: %s\n", strings.Join(in.Services, "; "))
	}
	return b.String()
}

func logoPrompt(in LogoInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A clean, modern vector logo for a business named %q", in.BusinessName)
	if in.Industry != "" {
		fmt.Fprintf(&b, " in the %s industry", in.Industry)
	}
	b.WriteString(". Flat design on a plain white background, no mockups.")
	if in.Style != "" {
		fmt.Fprintf(&b, " Style: %s.", in.Style)
	}
	if in.Colors != "" {
		fmt.Fprintf(&b, " Colors: %s.", in.Colors)
	}
	return b.String()
}

func writeOptional(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}
