package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"sync"
	"time"
)

// FormatFunc checks the text form of an answer.
type FormatFunc func(s string) error

var (
	mu      sync.RWMutex
	formats = make(map[string]FormatFunc)
	// ErrFormatExists is returned by RegisterFormat when a checker with the
	// same name has already been registered.
	ErrFormatExists = errors.New("format already registered")
)

// RegisterFormat registers a format checker under name. Field types use
// the checker registered under their own name.
func RegisterFormat(name string, fn FormatFunc) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := formats[name]; ok {
		return fmt.Errorf("%w: %s", ErrFormatExists, name)
	}
	formats[name] = fn
	return nil
}

// GetFormat retrieves a format checker by name.
func GetFormat(name string) (FormatFunc, bool) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := formats[name]
	return fn, ok
}

// Formats returns the sorted names of all registered checkers.
func Formats() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(formats))
	for n := range formats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var phoneChars = regexp.MustCompile(`^\+?[0-9 ().\-]+$`)

func checkEmail(s string) error {
	a, err := mail.ParseAddress(s)
	if err != nil {
		return err
	}
	if a.Name != "" || a.Address != s {
		return errors.New("expected a bare address")
	}
	return nil
}

func checkPhone(s string) error {
	if !phoneChars.MatchString(s) {
		return errors.New("unexpected characters")
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 7 || digits > 15 {
		return fmt.Errorf("expected 7 to 15 digits, got %d", digits)
	}
	return nil
}

func layouts(ls ...string) FormatFunc {
	return func(s string) error {
		var err error
		for _, l := range ls {
			if _, err = time.Parse(l, s); err == nil {
				return nil
			}
		}
		return err
	}
}

func init() {
	for name, fn := range map[string]FormatFunc{
		"email":    checkEmail,
		"phone":    checkPhone,
		"date":     layouts("2006-01-02"),
		"time":     layouts("15:04", "15:04:05"),
		"datetime": layouts(time.RFC3339, "2006-01-02T15:04", "2006-01-02T15:04:05"),
	} {
		if err := RegisterFormat(name, fn); err != nil {
			panic(err)
		}
	}
}
