package core

import (
	"strings"

	"github.com/go-playground/locales/ar"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
)

const (
	LangArabic  = "ar"
	LangEnglish = "en"
)

// NewTranslator returns the app's translators. Arabic is the fallback.
func NewTranslator() *ut.UniversalTranslator {
	_ar := ar.New()
	return ut.New(_ar, _ar, en.New())
}

// FindTranslator picks a translator from an Accept-Language header value.
func FindTranslator(uni *ut.UniversalTranslator, acceptLanguage string) ut.Translator {
	var locales []string
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" || tag == "*" {
			continue
		}
		// "en-US" -> "en"
		locales = append(locales, strings.ToLower(strings.SplitN(tag, "-", 2)[0]))
	}
	if len(locales) == 0 {
		return uni.GetFallback()
	}
	trans, _ := uni.FindTranslator(locales...)
	return trans
}

// AddTranslations adds plain (param-less) messages to a translator.
func AddTranslations(trans ut.Translator, msgs map[string]string) error {
	for key, text := range msgs {
		if err := trans.Add(key, text, true); err != nil {
			return err
		}
	}
	return nil
}

// Translate returns the message for key, or key itself if unknown.
func Translate(trans ut.Translator, key string, params ...string) string {
	if trans == nil {
		return key
	}
	s, err := trans.T(key, params...)
	if err != nil || s == "" {
		return key
	}
	return s
}
