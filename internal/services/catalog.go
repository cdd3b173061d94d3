// Package services holds the static, name-keyed menu of bookable service
// types. Nothing here calls out to the calendar or the LLM; it is pure data
// plus lookup helpers that the booking tools and turn orchestrator consult.
package services

import "strings"

// Service describes one bookable offering.
type Service struct {
	Key              string
	DisplayName      string
	DurationMinutes  int
	PriceRange       string
	Description      string
	PrepInstructions string
	Aftercare        string
}

var catalog = map[string]Service{
	"botox": {
		Key:              "botox",
		DisplayName:      "Botox",
		DurationMinutes:  30,
		PriceRange:       "$12-$15 per unit",
		Description:      "Neuromodulator injections to soften dynamic wrinkles.",
		PrepInstructions: "Avoid alcohol and blood thinners for 24 hours before your appointment.",
		Aftercare:        "Stay upright for 4 hours and avoid vigorous exercise for the rest of the day.",
	},
	"dermal_fillers": {
		Key:              "dermal_fillers",
		DisplayName:      "Dermal Fillers",
		DurationMinutes:  45,
		PriceRange:       "$600-$900 per syringe",
		Description:      "Hyaluronic-acid filler to restore volume and contour.",
		PrepInstructions: "Avoid alcohol, aspirin, and fish oil for 48 hours before your appointment.",
		Aftercare:        "Expect mild swelling for 2-3 days; avoid extreme heat or intense massage near the injection site.",
	},
	"laser_hair_removal": {
		Key:              "laser_hair_removal",
		DisplayName:      "Laser Hair Removal",
		DurationMinutes:  30,
		PriceRange:       "$75-$300 per session",
		Description:      "Laser treatment to reduce unwanted hair growth over a series of sessions.",
		PrepInstructions: "Shave the treatment area the night before; avoid sun exposure and tanning for 2 weeks prior.",
		Aftercare:        "Avoid sun exposure and hot showers for 24-48 hours after treatment.",
	},
	"hydrafacial": {
		Key:              "hydrafacial",
		DisplayName:      "HydraFacial",
		DurationMinutes:  60,
		PriceRange:       "$150-$300",
		Description:      "Multi-step hydradermabrasion facial that cleanses, extracts, and hydrates.",
		PrepInstructions: "No special prep is required; arrive with a clean face if possible.",
		Aftercare:        "Skin may appear flushed for a few hours; avoid heavy makeup the rest of the day.",
	},
	"chemical_peel": {
		Key:              "chemical_peel",
		DisplayName:      "Chemical Peel",
		DurationMinutes:  45,
		PriceRange:       "$100-$400",
		Description:      "Exfoliating treatment to improve tone, texture, and fine lines.",
		PrepInstructions: "Discontinue retinoids 5-7 days before your appointment.",
		Aftercare:        "Avoid sun exposure and use SPF 30+ daily for 2 weeks; skin will peel and flake.",
	},
	"microneedling": {
		Key:              "microneedling",
		DisplayName:      "Microneedling",
		DurationMinutes:  60,
		PriceRange:       "$250-$700",
		Description:      "Controlled micro-injury treatment to stimulate collagen production.",
		PrepInstructions: "Avoid retinoids and blood thinners for 3 days before your appointment.",
		Aftercare:        "Skin will appear red for 24-48 hours; avoid makeup and sun exposure for 24 hours.",
	},
	"consultation": {
		Key:              "consultation",
		DisplayName:      "Consultation",
		DurationMinutes:  30,
		PriceRange:       "Complimentary",
		Description:      "One-on-one conversation with a provider to discuss goals and treatment options.",
		PrepInstructions: "No special prep is required.",
		Aftercare:        "None required.",
	},
}

// Lookup returns the Service for key, normalizing case and surrounding
// whitespace, along with whether it was found.
func Lookup(key string) (Service, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	svc, ok := catalog[key]
	return svc, ok
}

// DurationMinutes returns the configured duration for a service key, or
// fallback if the key is unknown.
func DurationMinutes(key string, fallback int) int {
	if svc, ok := Lookup(key); ok {
		return svc.DurationMinutes
	}
	return fallback
}

// All returns every catalog entry, sorted by key for stable output.
func All() []Service {
	keys := make([]string, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	sortStrings(keys)

	out := make([]Service, 0, len(keys))
	for _, k := range keys {
		out = append(out, catalog[k])
	}
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
