package locale

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)
	require.Equal(t, DefaultLocale, s.Current())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "en", want: "en"},
		{in: "en_us", want: "en-US"},
		{in: " pt-br ", want: "pt-BR"},
		{in: "", wantErr: true},
		{in: "!!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			tag, err := Normalize(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tag.String())
		})
	}
}

func TestSupportedMatching(t *testing.T) {
	s, err := New("en", "en", "ru", "tr")
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "ru", "tr"}, s.Supported())

	got, err := s.Set("ru-RU")
	require.NoError(t, err)
	assert.Equal(t, "ru", got)
	assert.Equal(t, "ru", s.Current())

	_, err = s.Set("ja")
	require.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, "ru", s.Current())
}

func TestSubscribe(t *testing.T) {
	s, err := New("en")
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []string
	cancel := s.Subscribe(func(v string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, v)
	})
	require.Equal(t, 1, s.Subscribers())

	_, err = s.Set("de")
	require.NoError(t, err)
	_, err = s.Set("de")
	require.NoError(t, err)
	_, err = s.Set("fr")
	require.NoError(t, err)

	cancel()
	cancel()
	require.Zero(t, s.Subscribers())

	_, err = s.Set("es")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"de", "fr"}, seen)
}
