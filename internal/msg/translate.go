package msg

import (
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
)

// Translator resolves message keys into rendered text for one locale.
type Translator struct {
	trans ut.Translator
}

// englishCatalog maps every key the editor can emit to its English text.
// Arguments interpolate by position: {0}, {1}, ...
var englishCatalog = map[string]string{
	KeyBlockLong:     "The block spans more than a hundred years. Please check the dates.",
	KeyBlockNegative: "The first appearance is after the last appearance.",

	KeyBlockEarly(FieldFirstAppearance):         "The first appearance predates the earliest known newspaper (12 September 1605).",
	KeyBlockFiction(FieldFirstAppearance):       "The first appearance is in the future.",
	KeyBlockYearCompleted(FieldFirstAppearance): "The year “{0}” of the first appearance was completed to {1}.",
	KeyBlockSwapped(FieldFirstAppearance):       "Day and month of the first appearance were swapped to form a valid date.",
	KeyBlockInvalid(FieldFirstAppearance):       "The first appearance could not be interpreted as a date.",

	KeyBlockEarly(FieldLastAppearance):         "The last appearance predates the earliest known newspaper (12 September 1605).",
	KeyBlockFiction(FieldLastAppearance):       "The last appearance is in the future.",
	KeyBlockYearCompleted(FieldLastAppearance): "The year “{0}” of the last appearance was completed to {1}.",
	KeyBlockSwapped(FieldLastAppearance):       "Day and month of the last appearance were swapped to form a valid date.",
	KeyBlockInvalid(FieldLastAppearance):       "The last appearance could not be interpreted as a date.",

	KeyUploadError:             "The course of appearance could not be uploaded: {0}",
	KeyUploadIsEmpty:           "No file was provided for upload.",
	KeyUploadOverlappingRanges: "The uploaded course contains blocks with overlapping date ranges.",
	KeyUploadMissingElement:    "The uploaded course is missing a mandatory element: {0}",
	KeyUploadMissingValue:      "The uploaded course is missing a mandatory value: {0}",

	KeyCalendarIsEmpty: "The course of appearance does not contain any issues yet.",
	KeyDownloadError:   "The course of appearance could not be exported: {0}",
}

// NewTranslator builds the English translator with the full catalog
// registered.
func NewTranslator() (*Translator, error) {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")

	for key, text := range englishCatalog {
		if err := trans.Add(key, text, false); err != nil {
			return nil, err
		}
	}
	return &Translator{trans: trans}, nil
}

// Resolve renders the message in the translator's locale. Unknown keys fall
// back to the key itself so a missing catalog entry stays diagnosable.
func (t *Translator) Resolve(m Message) string {
	text, err := t.trans.T(m.Key, m.Args...)
	if err != nil {
		return m.Key
	}
	return text
}
