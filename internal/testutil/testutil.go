// Package testutil provides shared test helpers for setting up story stores and fixtures.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/gazette/internal/models"
	"github.com/starford/gazette/internal/storage"
)

// Headlines of the fixture stories, in collection order.
const (
	Headline1  = "A group of centrist lawmakers has a new compromise proposal for more stimulus"
	Headline2  = "Ukraine backs opposition forces against Belarusian president"
	Headline3  = "Nicaragua, Venezuela offer asylum to Snowden"
	Headline4  = "Magic's not back yet at Disney: Analysts"
	Headline5  = "Six Kids Die in Detroit House Fire"
	Headline6  = "McEnroe routs Lendl"
	Headline7  = "Bush Decries Exxon Valdez Spillage of 'Precious, Precious' Oil"
	Headline8  = "Ouija riot baffles police"
	Headline9  = "Remember Those Few Glorious Minutes When the World Was Free of Trump's Twitter Account?"
	Headline10 = "'I turned away Beatles for just £25'"
)

// Day returns midnight UTC on the given date.
func Day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// Wildfires is the single-story fixture used by the basic CRUD tests.
func Wildfires() models.Story {
	return models.Story{
		Headline: "Wildfires kill eight",
		Content:  "Oregon faces fire conditions unseen in decades",
		Date:     Day(2020, time.September, 10),
		Author:   "Li Zhou",
	}
}

// FirstSix returns stories 1 to 6.
func FirstSix() []models.Story {
	return []models.Story{
		{Headline: Headline1, Author: "Li Zhou", Date: Day(2020, time.September, 16),
			Content: "A centrist bipartisan group is trying to break through the stimulus stalemate."},
		{Headline: Headline2, Author: "Caitlin McFall", Date: Day(2020, time.September, 15),
			Content: "Ukrainian lawmakers joined Western countries in condemning the recent presidential election in Belarus."},
		{Headline: Headline3, Author: "Associated Press", Date: Day(2013, time.July, 5), Public: true,
			Content: "Presidents Daniel Ortega of Nicaragua and Nicolas Maduro of Venezuela said Friday they were willing to grant asylum."},
		{Headline: Headline4, Author: "Allyson Lieberman", Date: Day(1999, time.September, 28),
			Content: "Michael Eisner's efforts to slash costs and pump up revenue at Disney may have stabilized earnings."},
		{Headline: Headline5, Author: "David Goodman", Date: Day(1998, time.December, 27), Public: true,
			Content: "Six children died in a fire at their grandmother's home Sunday."},
		{Headline: Headline6, Author: "United Press International", Date: Day(1983, time.July, 2),
			Content: "John McEnroe settled his grudge duel with Ivan Lendl in straight sets."},
	}
}

// LastFour returns stories 7 to 10, which share authors with FirstSix.
func LastFour() []models.Story {
	return []models.Story{
		{Headline: Headline7, Author: "Allyson Lieberman", Date: Day(1989, time.March, 25),
			Content: "In a highly charged White House press conference Friday, President Bush lashed out against Exxon."},
		{Headline: Headline8, Author: "David Goodman", Date: Day(1979, time.October, 26), Public: true,
			Content: "The mass hysteria that drove students temporarily berserk began with a ouija board."},
		{Headline: Headline9, Author: "David Goodman", Date: Day(2017, time.December, 27),
			Content: "Nov. 2, 2017, is a day that will go down in history."},
		{Headline: Headline10, Author: "Caitlin McFall", Date: Day(1994, time.December, 12), Public: true,
			Content: "City landlord George, 72, has no regrets."},
	}
}

// AllTen returns every fixture story in order.
func AllTen() []models.Story {
	return append(FirstSix(), LastFour()...)
}

// TestStore creates a JSON story file in a temporary directory.
func TestStore(t *testing.T) *storage.JSONFile {
	t.Helper()
	f, err := storage.NewJSONFile(filepath.Join(t.TempDir(), "stories.json"), nil)
	if err != nil {
		t.Fatal(err)
	}
	return f
}
