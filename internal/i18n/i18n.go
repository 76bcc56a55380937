// Package i18n holds the labels of rendered schedule views.
package i18n

// Language represents a supported language.
type Language string

const (
	// Russian is the Russian language.
	Russian Language = "ru"
	// English is the English language.
	English Language = "en"
)

// DefaultLanguage is the fallback language.
const DefaultLanguage = Russian

// translations maps language codes to translation keys and their values.
//
//nolint:gochecknoglobals // static translation table.
var translations = map[Language]map[string]string{
	Russian: {
		"schedule.title":         "План тренировок",
		"schedule.week":          "Неделя %d",
		"schedule.week.volume":   "Объём: %s км",
		"schedule.column.date":   "Дата",
		"schedule.column.type":   "Тип",
		"schedule.column.km":     "Км",
		"schedule.column.pace":   "Темп",
		"schedule.column.detail": "Описание",
		"schedule.key":           "ключевая",
		"day.rest":               "Отдых",
		"day.easy":               "Лёгкий бег",
		"day.long":               "Длительный бег",
		"day.tempo":              "Темповый бег",
		"day.interval":           "Интервалы",
		"day.fartlek":            "Фартлек",
		"day.race":               "Забег",
		"day.control":            "Контрольный забег",
		"day.other":              "ОФП",
		"day.sbu":                "СБУ",
		"day.free":               "Свободная тренировка",
	},
	English: {
		"schedule.title":         "Training plan",
		"schedule.week":          "Week %d",
		"schedule.week.volume":   "Volume: %s km",
		"schedule.column.date":   "Date",
		"schedule.column.type":   "Type",
		"schedule.column.km":     "Km",
		"schedule.column.pace":   "Pace",
		"schedule.column.detail": "Details",
		"schedule.key":           "key",
		"day.rest":               "Rest",
		"day.easy":               "Easy run",
		"day.long":               "Long run",
		"day.tempo":              "Tempo run",
		"day.interval":           "Intervals",
		"day.fartlek":            "Fartlek",
		"day.race":               "Race",
		"day.control":            "Time trial",
		"day.other":              "Strength",
		"day.sbu":                "Drills",
		"day.free":               "Free training",
	},
}

// SupportedLanguages returns a list of all supported languages.
func SupportedLanguages() []Language {
	return []Language{Russian, English}
}

// IsSupported checks if a language is supported.
func IsSupported(lang Language) bool {
	_, ok := translations[lang]
	return ok
}

// Translate returns the translation of key in lang, falling back to the default language and finally to the key
// itself.
func Translate(lang Language, key string) string {
	if translation, ok := translations[lang][key]; ok {
		return translation
	}
	if translation, ok := translations[DefaultLanguage][key]; ok {
		return translation
	}
	return key
}
