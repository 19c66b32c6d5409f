// Package intake implements the conversation core: the localized prompt
// table, the per-user session store, and the intake state machine.
package intake

import "fmt"

// Language identifies one of the supported conversation languages. The
// values double as the keyboard labels the user taps to choose.
type Language string

const (
	LangFinnish Language = "Suomi"
	LangRussian Language = "Русский"
	LangEnglish Language = "English"
)

// DefaultLanguage is used before the user has made a selection and as the
// fallback for unknown selectors.
const DefaultLanguage = LangEnglish

// Languages lists the supported languages in keyboard order.
var Languages = []Language{LangFinnish, LangRussian, LangEnglish}

// ParseLanguage matches free text against the language keyboard labels.
func ParseLanguage(text string) (Language, bool) {
	for _, lang := range Languages {
		if text == string(lang) {
			return lang, true
		}
	}
	return "", false
}

// Prompt is a key into the localization table.
type Prompt string

const (
	PromptLanguageChoice Prompt = "language_choice"
	PromptAskName        Prompt = "ask_name"
	PromptAskPhone       Prompt = "ask_phone"
	PromptAskDescription Prompt = "ask_description"
	PromptPhotoHint      Prompt = "photo_hint"
	PromptPhotoAck       Prompt = "photo_ack"
	PromptPostFinishAck  Prompt = "post_finish_ack"
	PromptConfirmation   Prompt = "confirmation"
	PromptExtraInfoHint  Prompt = "extra_info_hint"
)

var allPrompts = []Prompt{
	PromptLanguageChoice,
	PromptAskName,
	PromptAskPhone,
	PromptAskDescription,
	PromptPhotoHint,
	PromptPhotoAck,
	PromptPostFinishAck,
	PromptConfirmation,
	PromptExtraInfoHint,
}

// Table maps every prompt key to its text for every supported language.
// Totality is enforced at construction so lookups can never miss.
type Table struct {
	texts map[Language]map[Prompt]string
}

// NewTable validates that texts covers every prompt for every supported
// language and returns the resulting table.
func NewTable(texts map[Language]map[Prompt]string) (*Table, error) {
	for _, lang := range Languages {
		byPrompt, ok := texts[lang]
		if !ok {
			return nil, fmt.Errorf("locale: missing language %q", lang)
		}
		for _, p := range allPrompts {
			if byPrompt[p] == "" {
				return nil, fmt.Errorf("locale: missing prompt %q for language %q", p, lang)
			}
		}
	}
	return &Table{texts: texts}, nil
}

// Resolve returns the prompt text for the given language, falling back to
// the default language when the selector is unknown.
func (t *Table) Resolve(lang Language, p Prompt) string {
	byPrompt, ok := t.texts[lang]
	if !ok {
		byPrompt = t.texts[DefaultLanguage]
	}
	return byPrompt[p]
}

const languageChoiceLine = "Valitse kieli / Выберите язык / Choose language:"

// DefaultTable returns the built-in trilingual prompt table.
func DefaultTable() *Table {
	t, err := NewTable(map[Language]map[Prompt]string{
		LangFinnish: {
			PromptLanguageChoice: languageChoiceLine,
			PromptAskName:        "Kirjoita nimesi:",
			PromptAskPhone:       "Anna puhelinnumerosi:",
			PromptAskDescription: "Kerro, mikä on ongelma tai toiveesi.",
			PromptPhotoHint:      "📷 Voit lähettää kuvia tai kirjoita /skip jatkaaksesi ilman niitä.",
			PromptPhotoAck:       "📸 Kuva vastaanotettu",
			PromptPostFinishAck:  "✉️ Kiitos! Viestisi on vastaanotettu.",
			PromptConfirmation:   "✅ Kiitos! Pyyntö on vastaanotettu. Otamme sinuun yhteyttä mahdollisimman pian!",
			PromptExtraInfoHint:  "💬 Jos sinulla on lisäkysymyksiä, voit kirjoittaa ne suoraan tähän chattiin.",
		},
		LangRussian: {
			PromptLanguageChoice: languageChoiceLine,
			PromptAskName:        "Введите ваше имя:",
			PromptAskPhone:       "Введите номер телефона:",
			PromptAskDescription: "Опишите, пожалуйста, суть вашего вопроса или проблемы.",
			PromptPhotoHint:      "📷 Вы можете отправить фото или напишите /skip чтобы продолжить без фото.",
			PromptPhotoAck:       "📸 Фото получено",
			PromptPostFinishAck:  "✉️ Спасибо! Ваше сообщение получено.",
			PromptConfirmation:   "✅ Спасибо! Ваша заявка отправлена. Мы свяжемся с вами в кратчайшие сроки!",
			PromptExtraInfoHint:  "💬 Если у вас есть дополнительные вопросы — просто напишите их сюда.",
		},
		LangEnglish: {
			PromptLanguageChoice: languageChoiceLine,
			PromptAskName:        "Please enter your name:",
			PromptAskPhone:       "Enter your phone number:",
			PromptAskDescription: "Please describe your question or issue.",
			PromptPhotoHint:      "📷 You can send photos or type /skip to continue without them.",
			PromptPhotoAck:       "📸 Photo received",
			PromptPostFinishAck:  "✉️ Thank you! Your message has been received.",
			PromptConfirmation:   "✅ Thank you! Your request has been sent. We will contact you shortly!",
			PromptExtraInfoHint:  "💬 If you have any additional questions, feel free to type them here.",
		},
	})
	if err != nil {
		panic(err)
	}
	return t
}
