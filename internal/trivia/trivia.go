// Package trivia broadcasts a daily "did you know" notification to every
// subscribed owner.
package trivia

import (
	"time"

	"push-demo-backend/internal/model"
)

// Title is the notification title of every trivia message.
const Title = "Did you know?"

// List holds one entry per day of a 26 day cycle.
var List = [...]string{
	"Astrology is the study of celestial objects and their position's affect on humans and earth",
	"The zodiac is divided into twelve sections with signs that form the celestial sphere",
	"Aries is the first astrological sign of the zodiac",
	"Aries' symbol is a ram",
	"Taurus is the second astrological sign of the zodiac",
	"Taurus' symbol is a bull",
	"Gemini is the third astrological sign of the zodiac",
	"Gemini's symbol is twins",
	"Cancer is the fourth astrological sign of the zodiac",
	"Cancer's symbol is a crab",
	"Leo is the fifth astrological sign of the zodiac",
	"Leo's symbol is a lion",
	"Virgo is the sixth astrological sign of the zodiac",
	"Virgo's symbol is a virgin",
	"Libra is the seventh astrological sign of the zodiac",
	"Libra's symbol is scales",
	"Scorpio is the eighth astrological sign of the zodiac",
	"Scorpio's symbol is a scorpion",
	"Sagittarius is the ninth astrological sign of the zodiac",
	"Sagittarius' symbol is an archer",
	"Capricorn is the tenth astrological sign of the zodiac",
	"Capricorn's symbol is a goat-fish hybrid",
	"Aquarius is the eleventh astrological sign of the zodiac",
	"Aquarius' symbol is a water-bearer",
	"Pisces is the twelfth astrological sign of the zodiac",
	"Pisces' symbol is a fish",
}

// ForDay picks the entry for t's day of the year.
func ForDay(t time.Time) string {
	return List[t.YearDay()%len(List)]
}

// Notification builds the trivia notification for day t.
func Notification(t time.Time) model.Notification {
	n := model.NewNotification(ForDay(t))
	n.Title = Title
	n.Tag = model.TagTrivia
	return n
}
