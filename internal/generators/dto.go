package generators

import "github.com/google/uuid"

type BusinessPlanInput struct {
	BusinessID   *uuid.UUID `json:"businessId"`
	BusinessName string     `json:"businessName" validate:"required,max=200"`
	Industry     string     `json:"industry" validate:"required,max=120"`
	Description  string     `json:"description" validate:"required,max=4000"`
	TargetMarket string     `json:"targetMarket" validate:"max=1000"`
	Goals        string     `json:"goals" validate:"max=2000"`
	Budget       string     `json:"budget" validate:"max=200"`
}

type WebsiteContentInput struct {
	BusinessID   *uuid.UUID `json:"businessId"`
	BusinessName string     `json:"businessName" validate:"required,max=200"`
	Industry     string     `json:"industry" validate:"required,max=120"`
	Description  string     `json:"description" validate:"required,max=4000"`
	Tone         string     `json:"tone" validate:"max=60"`
	Services     []string   `json:"services" validate:"max=12,dive,max=200"`
}

type LogoInput struct {
	BusinessID   *uuid.UUID `json:"businessId"`
	BusinessName string     `json:"businessName" validate:"required,max=200"`
	Industry     string     `json:"industry" validate:"max=120"`
	Style        string     `json:"style" validate:"max=120"`
	Colors       string     `json:"colors" validate:"max=120"`
	Count        int        `json:"count" validate:"omitempty,min=1,max=4"`
}

// BusinessPlan is the structured JSON the text model is asked to return.
type BusinessPlan struct {
	ExecutiveSummary     string      `json:"executiveSummary"`
	MarketAnalysis       string      `json:"marketAnalysis"`
	MarketingStrategy    string      `json:"marketingStrategy"`
	FinancialProjections string      `json:"financialProjections"`
	Milestones           []Milestone `json:"milestones"`
}

type Milestone struct {
	Title    string `json:"title"`
	Timeline string `json:"timeline"`
	Detail   string `json:"detail"`
}

type WebsiteContent struct {
	Hero     WebsiteHero      `json:"hero"`
	About    string           `json:"about"`
	Services []WebsiteService `json:"services"`
	CTA      WebsiteCTA       `json:"cta"`
	SEO      WebsiteSEO       `json:"seo"`
}

type WebsiteHero struct {
	Headline    string `json:"headline"`
	Subheadline string `json:"subheadline"`
}

type WebsiteService struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type WebsiteCTA struct {
	Text        string `json:"text"`
	ButtonLabel string `json:"buttonLabel"`
}

type WebsiteSEO struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}
