// Package locale holds the active UI/API locale and notifies subscribers when it changes.
package locale

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// DefaultLocale is used when nothing else is configured.
const DefaultLocale = "en"

// ErrUnsupported is returned when a locale does not match any supported locale.
var ErrUnsupported = errors.New("unsupported locale")

// Source is an observable locale value. The zero value is not usable; call New.
type Source struct {
	mu        sync.RWMutex
	current   string
	subs      map[int]func(string)
	nextID    int
	supported []language.Tag
	matcher   language.Matcher
}

// New creates a Source. When supported is non-empty, Set only accepts locales that match
// one of them and stores the matched supported tag.
func New(initial string, supported ...string) (*Source, error) {
	s := &Source{subs: make(map[int]func(string))}

	for _, raw := range supported {
		tag, err := language.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("parse supported locale %q: %w", raw, err)
		}
		s.supported = append(s.supported, tag)
	}
	if len(s.supported) > 0 {
		s.matcher = language.NewMatcher(s.supported)
	}

	if strings.TrimSpace(initial) == "" {
		initial = DefaultLocale
	}
	value, err := s.resolve(initial)
	if err != nil {
		return nil, err
	}
	s.current = value
	return s, nil
}

// Current returns the active locale tag.
func (s *Source) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Supported returns the configured supported locales.
func (s *Source) Supported() []string {
	out := make([]string, 0, len(s.supported))
	for _, tag := range s.supported {
		out = append(out, tag.String())
	}
	return out
}

// Set changes the active locale and notifies subscribers if it changed.
// It returns the stored (canonical) tag.
func (s *Source) Set(raw string) (string, error) {
	value, err := s.resolve(raw)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if value == s.current {
		s.mu.Unlock()
		return value, nil
	}
	s.current = value
	subs := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
	return value, nil
}

// Subscribe registers fn for future changes. The returned function removes it and is
// safe to call more than once.
func (s *Source) Subscribe(fn func(string)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Subscribers returns the number of registered listeners.
func (s *Source) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *Source) resolve(raw string) (string, error) {
	tag, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	if s.matcher == nil {
		return tag.String(), nil
	}

	_, idx, confidence := s.matcher.Match(tag)
	if confidence == language.No {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, tag.String())
	}
	return s.supported[idx].String(), nil
}

// Normalize parses a BCP 47 tag ("en_us", "pt-BR") into its canonical form.
func Normalize(raw string) (language.Tag, error) {
	value := strings.ReplaceAll(strings.TrimSpace(raw), "_", "-")
	if value == "" {
		return language.Und, errors.New("locale is required")
	}
	tag, err := language.Parse(value)
	if err != nil {
		return language.Und, fmt.Errorf("invalid locale %q: %w", raw, err)
	}
	return tag, nil
}
