package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"fee-ledger/internal/domain"
	"fee-ledger/internal/ledger"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	paymentModeTag  = "payment_mode"
	paymentModeText = "{0} must be one of Cash, Card, Online, BankTransfer, Cheque, DD"

	requiredTag  = "required"
	requiredText = "{0} is required"

	datetimeTag  = "datetime"
	datetimeText = "{0} must be a date in YYYY-MM-DD format"
)

// Validator checks request bodies and reports failures by json field name in English.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewValidator() *Validator {
	validate := validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(paymentModeTag, paymentModeValidation)
	v := &Validator{validate: validate, translator: translator}
	v.registerTranslation(paymentModeTag, paymentModeText)
	v.registerTranslation(requiredTag, requiredText, true)
	v.registerTranslation(datetimeTag, datetimeText, true)
	return v
}

func (v *Validator) registerTranslation(tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = v.validate.RegisterTranslation(
		tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Struct validates dst and converts failures into a *ledger.ValidationError.
func (v *Validator) Struct(dst any) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ledger.ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, ledger.FieldError{Field: fieldPath(fe), Error: fe.Translate(v.translator)})
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace: "PaymentRequest.selected_ids[0]"
// becomes "selected_ids[0]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.IndexByte(ns, '.'); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func paymentModeValidation(fl validator.FieldLevel) bool {
	return domain.PaymentMode(fl.Field().String()).Valid()
}

var errEmptyBody = errors.New("request body is required")

// decodeJSON reads a JSON body into dst. An empty body is accepted only when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if allowEmpty {
				return nil
			}
			return errEmptyBody
		}
		return err
	}
	return nil
}
