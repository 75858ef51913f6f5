package core

import (
	"reflect"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	notBlankTag    = "notblank"
	notBlankTextEn = "this field cannot be blank"
	notBlankTextAr = "لا يمكن أن يكون هذا الحقل فارغًا"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredTextEn  = "this field is required"
	requiredTextAr  = "هذا الحقل مطلوب"

	// arabic texts for the builtin tags used by the app; {1} is the tag param
	arTexts = map[string]string{
		"min":   "يجب أن يحتوي هذا الحقل على {1} أحرف على الأقل",
		"max":   "يجب ألا يتجاوز هذا الحقل {1} حرفًا",
		"email": "يجب أن يكون هذا الحقل بريدًا إلكترونيًا صالحًا",
		"oneof": "يجب أن تكون القيمة إحدى القيم التالية: {1}",
		"uuid":  "معرّف غير صالح",
	}
)

// InitValidators instantiates the validator for use, with english and arabic field messages.
func InitValidators(validate *validator.Validate, uni *ut.UniversalTranslator) {
	enTrans, _ := uni.GetTranslator(LangEnglish)
	arTrans, _ := uni.GetTranslator(LangArabic)

	_ = en_translations.RegisterDefaultTranslations(validate, enTrans)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(validate, enTrans, notBlankTag, notBlankTextEn)
	RegisterCustomTranslation(validate, arTrans, notBlankTag, notBlankTextAr)

	RegisterCustomTranslation(validate, enTrans, requiredTag, requiredTextEn, true)
	RegisterCustomTranslation(validate, enTrans, requiredWithTag, requiredTextEn, true)
	RegisterCustomTranslation(validate, arTrans, requiredTag, requiredTextAr, true)
	RegisterCustomTranslation(validate, arTrans, requiredWithTag, requiredTextAr, true)
	for tag, text := range arTexts {
		RegisterCustomTranslation(validate, arTrans, tag, text, true)
	}
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
// The text may reference the field name as {0} and the tag param as {1}.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field(), fe.Param())
			return s
		},
	)
}

// Custom Global Validators

// notBlankValidation rejects strings made only of whitespace.
func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
