package forms

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mark3labs/carepath/internal/wizard"
)

// DateLayout is the layout accepted by the date format.
const DateLayout = "2006-01-02"

var (
	errDate    = errors.New("must be a date in YYYY-MM-DD form")
	errAmount  = errors.New("must be a positive amount with at most two decimals")
	errContact = errors.New("must be an email address or a phone number")
	errName    = errors.New("must be 2-100 letters, spaces or . ' -")
)

var amountRegex = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// formats maps schema format names to field checks.
var formats = map[string]func(wizard.Value) error{
	"date":    checkDate,
	"amount":  checkAmount,
	"contact": checkContact,
	"name":    checkName,
}

func text(v wizard.Value) string {
	return strings.TrimSpace(v.String())
}

func checkDate(v wizard.Value) error {
	if _, err := time.Parse(DateLayout, text(v)); err != nil {
		return errDate
	}
	return nil
}

func checkAmount(v wizard.Value) error {
	s := strings.TrimPrefix(strings.ReplaceAll(text(v), ",", ""), "$")
	if !amountRegex.MatchString(s) {
		return errAmount
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return errAmount
	}
	return nil
}

func checkContact(v wizard.Value) error {
	s := text(v)
	if strings.Contains(s, "@") {
		if _, err := mail.ParseAddress(s); err != nil {
			return errContact
		}
		return nil
	}
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')' || r == '.':
		default:
			return errContact
		}
	}
	if digits < 7 || digits > 15 {
		return errContact
	}
	return nil
}

func checkName(v wizard.Value) error {
	s := text(v)
	n := len([]rune(s))
	if n < 2 || n > 100 {
		return errName
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && r != ' ' && r != '.' && r != '\'' && r != '-' {
			return errName
		}
	}
	return nil
}

// compileRules builds the cross-field predicate for a step.
func compileRules(ss StepSchema) (func(wizard.Draft) wizard.Validation, error) {
	owned := make(map[string]FieldSchema, len(ss.Fields))
	for _, f := range ss.Fields {
		owned[f.Key] = f
	}

	var checks []func(wizard.Draft, *wizard.Validation)
	for _, r := range ss.Rules {
		switch r.Rule {
		case "date_order":
			for _, k := range []string{r.From, r.To} {
				f, ok := owned[k]
				if !ok {
					return nil, fmt.Errorf("rule date_order references unknown field %q", k)
				}
				if f.Format != "date" {
					return nil, fmt.Errorf("rule date_order needs date fields, %q is not one", k)
				}
			}
			from, to := r.From, r.To
			checks = append(checks, func(d wizard.Draft, v *wizard.Validation) {
				a, errA := time.Parse(DateLayout, d.Text(from))
				b, errB := time.Parse(DateLayout, d.Text(to))
				if errA != nil || errB != nil {
					return
				}
				if b.Before(a) {
					v.Fail(to, fmt.Sprintf("must not be before %s", from))
				}
			})
		default:
			return nil, fmt.Errorf("unknown rule %q", r.Rule)
		}
	}

	return func(d wizard.Draft) wizard.Validation {
		var v wizard.Validation
		for _, check := range checks {
			check(d, &v)
		}
		return v
	}, nil
}
