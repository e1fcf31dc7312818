package classify

import "github.com/stylevault/resilience/internal/core/domain"

// Tone selects which user-message set is used.
type Tone string

const (
	ToneNeutral    Tone = "neutral"
	ToneSupportive Tone = "supportive"
)

// neutralMessages is the default user-facing message per category.
var neutralMessages = map[domain.Category]string{
	domain.CategoryNetwork:         "Connection problem. Please check your internet and try again.",
	domain.CategoryAuthentication:  "Your session has expired. Please sign in again.",
	domain.CategoryValidation:      "Some of the entered information looks invalid. Please review and retry.",
	domain.CategoryPermission:      "This action needs a permission that hasn't been granted.",
	domain.CategoryStorage:         "We couldn't save your data right now. Please try again.",
	domain.CategoryAIService:       "The style analysis service is busy. Please try again in a moment.",
	domain.CategoryImageProcessing: "We couldn't process that photo. Try a different one.",
	domain.CategoryDatabase:        "A data error occurred. Please try again shortly.",
	domain.CategoryUI:              "Something went wrong on this screen. Pull to refresh.",
	domain.CategorySystem:          "An unexpected problem occurred. Please try again.",
	domain.CategoryUnknown:         "Something went wrong. Please try again.",
}

// supportiveMessages is the softer-tone variant used by the consumer app.
var supportiveMessages = map[domain.Category]string{
	domain.CategoryNetwork:         "Looks like the connection dropped. No worries, your wardrobe is safe. Try again when you're back online.",
	domain.CategoryAuthentication:  "You've been signed out for a while. A quick sign-in and you're back.",
	domain.CategoryValidation:      "Almost there! A couple of fields need a second look.",
	domain.CategoryPermission:      "We need your permission for this one. You can grant it in settings.",
	domain.CategoryStorage:         "We couldn't save that just now, but nothing is lost. Give it another go.",
	domain.CategoryAIService:       "Our stylist is thinking hard right now. Try again in a moment.",
	domain.CategoryImageProcessing: "That photo didn't quite work out. Another angle might do the trick.",
	domain.CategoryDatabase:        "A small hiccup on our side. It usually clears up right away.",
	domain.CategoryUI:              "This screen had a moment. A refresh should fix it.",
	domain.CategorySystem:          "Something unexpected happened, but it's not your fault. Try once more.",
	domain.CategoryUnknown:         "Something went sideways. Trying again usually helps.",
}

// UserMessage returns the display message for a category in the given tone,
// falling back to the unknown-category entry. Never returns an empty string.
func UserMessage(cat domain.Category, tone Tone) string {
	table := neutralMessages
	if tone == ToneSupportive {
		table = supportiveMessages
	}
	if msg, ok := table[cat]; ok {
		return msg
	}
	return table[domain.CategoryUnknown]
}
