// Package rewards awards collectible subject badges, points and milestone
// rewards for published posts.
package rewards

import (
	"regexp"
	"sort"
	"strings"
)

// Category is the broad kind of a subject. Badge counters are kept per category.
type Category string

const (
	CategoryAnimal    Category = "animal"
	CategoryBird      Category = "bird"
	CategoryInsect    Category = "insect"
	CategoryPlant     Category = "plant"
	CategoryLandscape Category = "landscape"
	CategoryCelestial Category = "celestial"
	CategoryPark      Category = "park"
	CategoryEvent     Category = "event"
)

// SubjectKey is the normalized identifier of a collectible subject.
type SubjectKey string

const (
	WhiteTailedDeer   SubjectKey = "white_tailed_deer"
	RedFox            SubjectKey = "red_fox"
	BlackBear         SubjectKey = "black_bear"
	GrayWolf          SubjectKey = "gray_wolf"
	MountainLion      SubjectKey = "mountain_lion"
	BaldEagle         SubjectKey = "bald_eagle"
	RedTailedHawk     SubjectKey = "red_tailed_hawk"
	GreatBlueHeron    SubjectKey = "great_blue_heron"
	SnowyOwl          SubjectKey = "snowy_owl"
	Yosemite          SubjectKey = "yosemite_np"
	Yellowstone       SubjectKey = "yellowstone_np"
	GrandCanyon       SubjectKey = "grand_canyon_np"
	Zion              SubjectKey = "zion_np"
	AuroraBorealis    SubjectKey = "aurora_borealis"
	MilkyWay          SubjectKey = "milky_way"
	TotalSolarEclipse SubjectKey = "total_solar_eclipse"
	MeteorShower      SubjectKey = "meteor_shower"
	MountainPeak      SubjectKey = "mountain_peak"
	Waterfall         SubjectKey = "waterfall"
	DesertLandscape   SubjectKey = "desert_landscape"
	WildflowerMeadow  SubjectKey = "wildflower_meadow"
	GiantSequoia      SubjectKey = "giant_sequoia"
	CherryBlossom     SubjectKey = "cherry_blossom"
)

// Subject describes one collectible.
type Subject struct {
	Key         SubjectKey
	Name        string
	Category    Category
	Rarity      int
	Group       string
	Description string
}

var subjects = map[SubjectKey]Subject{
	WhiteTailedDeer: {Name: "White-tailed Deer", Category: CategoryAnimal, Rarity: 5, Group: "mammals", Description: "Common North American deer species"},
	RedFox:          {Name: "Red Fox", Category: CategoryAnimal, Rarity: 6, Group: "mammals", Description: "Clever canine with distinctive red coat"},
	BlackBear:       {Name: "Black Bear", Category: CategoryAnimal, Rarity: 7, Group: "mammals", Description: "North American bear species"},
	GrayWolf:        {Name: "Gray Wolf", Category: CategoryAnimal, Rarity: 8, Group: "mammals", Description: "Apex predator and pack hunter"},
	MountainLion:    {Name: "Mountain Lion", Category: CategoryAnimal, Rarity: 9, Group: "mammals", Description: "Elusive big cat of the Americas"},

	BaldEagle:      {Name: "Bald Eagle", Category: CategoryBird, Rarity: 7, Group: "birds_of_prey", Description: "Iconic American raptor"},
	RedTailedHawk:  {Name: "Red-tailed Hawk", Category: CategoryBird, Rarity: 5, Group: "birds_of_prey", Description: "Common North American hawk"},
	GreatBlueHeron: {Name: "Great Blue Heron", Category: CategoryBird, Rarity: 6, Group: "wading_birds", Description: "Large wading bird"},
	SnowyOwl:       {Name: "Snowy Owl", Category: CategoryBird, Rarity: 8, Group: "owls", Description: "Arctic owl with white plumage"},

	Yosemite:    {Name: "Yosemite National Park", Category: CategoryPark, Rarity: 6, Group: "national_parks", Description: "Iconic California park with granite cliffs"},
	Yellowstone: {Name: "Yellowstone National Park", Category: CategoryPark, Rarity: 6, Group: "national_parks", Description: "First national park, known for geysers"},
	GrandCanyon: {Name: "Grand Canyon National Park", Category: CategoryPark, Rarity: 6, Group: "national_parks", Description: "Massive canyon carved by Colorado River"},
	Zion:        {Name: "Zion National Park", Category: CategoryPark, Rarity: 7, Group: "national_parks", Description: "Utah park with red rock canyons"},

	AuroraBorealis:    {Name: "Aurora Borealis", Category: CategoryCelestial, Rarity: 9, Group: "phenomena", Description: "Northern Lights display"},
	MilkyWay:          {Name: "Milky Way", Category: CategoryCelestial, Rarity: 7, Group: "sky", Description: "Our home galaxy visible at night"},
	TotalSolarEclipse: {Name: "Total Solar Eclipse", Category: CategoryCelestial, Rarity: 10, Group: "phenomena", Description: "Rare alignment of sun, moon, and Earth"},
	MeteorShower:      {Name: "Meteor Shower", Category: CategoryCelestial, Rarity: 6, Group: "phenomena", Description: "Streaks of light from space debris"},

	MountainPeak:    {Name: "Mountain Peak", Category: CategoryLandscape, Rarity: 5, Group: "mountains", Description: "Summit of a mountain"},
	Waterfall:       {Name: "Waterfall", Category: CategoryLandscape, Rarity: 5, Group: "water", Description: "Cascading water feature"},
	DesertLandscape: {Name: "Desert Landscape", Category: CategoryLandscape, Rarity: 4, Group: "desert", Description: "Arid terrain with unique beauty"},

	WildflowerMeadow: {Name: "Wildflower Meadow", Category: CategoryPlant, Rarity: 5, Group: "flowers", Description: "Field of blooming wildflowers"},
	GiantSequoia:     {Name: "Giant Sequoia", Category: CategoryPlant, Rarity: 7, Group: "trees", Description: "Massive ancient tree species"},
	CherryBlossom:    {Name: "Cherry Blossom", Category: CategoryPlant, Rarity: 6, Group: "flowers", Description: "Delicate pink spring flowers"},
}

// parks is the park subset in key order, used for location substring matching.
var parks []Subject

func init() { //nolint:gochecknoinits // derived lookup table
	for k, s := range subjects {
		s.Key = k
		subjects[k] = s
	}
	for _, s := range Subjects() {
		if s.Category == CategoryPark {
			parks = append(parks, s)
		}
	}
}

// Lookup returns the subject for an already normalized key.
func Lookup(key SubjectKey) (Subject, bool) {
	s, ok := subjects[key]
	return s, ok
}

// Subjects returns the whole dictionary ordered by key.
func Subjects() []Subject {
	out := make([]Subject, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	nonKey     = regexp.MustCompile(`[^a-z0-9_]`)
)

// Normalize maps free text to a subject key: lowercase, whitespace runs to
// underscores, anything outside [a-z0-9_] dropped.
func Normalize(s string) SubjectKey {
	s = strings.ToLower(s)
	s = whitespace.ReplaceAllString(s, "_")
	return SubjectKey(nonKey.ReplaceAllString(s, ""))
}

// ExtractSubjects finds the subjects referenced by a post. Tags match any
// subject by normalized key. The location matches by normalized key, or a
// park whose name appears in it. Results keep first-seen order without duplicates.
func ExtractSubjects(tags []string, location string) []Subject {
	var out []Subject
	seen := make(map[SubjectKey]bool)
	add := func(s Subject) {
		if !seen[s.Key] {
			seen[s.Key] = true
			out = append(out, s)
		}
	}

	for _, tag := range tags {
		if s, ok := subjects[Normalize(tag)]; ok {
			add(s)
		}
	}
	if location == "" {
		return out
	}
	if s, ok := subjects[Normalize(location)]; ok {
		add(s)
	}
	lower := strings.ToLower(location)
	for _, p := range parks {
		if strings.Contains(lower, strings.ToLower(p.Name)) {
			add(p)
		}
	}
	return out
}
