package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstruct(t *testing.T) {
	tests := []struct {
		name  string
		parts [2]string
		want  string
	}{
		{"prefix then suffix", [2]string{"example.com", ".org"}, "https://example.com.org"},
		{"suffix first is reordered", [2]string{".org", "example.com"}, "https://example.com.org"},
		{"trailing slash on prefix", [2]string{"example.com/", ".org"}, "https://example.com.org"},
		{"trailing slash on result", [2]string{"example.com", ".org/"}, "https://example.com.org"},
		{"scheme kept", [2]string{"http://foo", ".bar"}, "http://foo.bar"},
		{"https scheme kept", [2]string{".io/start", "https://app.example"}, "https://app.example.io/start"},
		{"neither dotted keeps order", [2]string{"a.com", "z"}, "https://a.comz"},
		{"both dotted keeps order", [2]string{".a", ".b"}, "https://.a.b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := Reconstruct(tt.parts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestReconstruct_Invalid(t *testing.T) {
	_, err := Reconstruct([2]string{"http://exa mple", ".com"})
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = Reconstruct([2]string{"http", ":"})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestExtractParts(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    [2]string
		wantErr bool
	}{
		{"primary pair", `{"tock":".org","jims":" example.com ","x":"ignored"}`, [2]string{"example.com", ".org"}, false},
		{"fallback pair", `{"beam":"example.com","cyan":".net"}`, [2]string{"example.com", ".net"}, false},
		{"mixed primary and fallback", `{"jims":"","beam":"b.example","tock":".dev"}`, [2]string{"b.example", ".dev"}, false},
		{"positional in document order", `{"x":"a.com","y":"z","w":".io"}`, [2]string{"a.com", "z"}, false},
		{"positional skips blanks and non-strings", `{"n":1,"e":"  ","x":".io","b":true,"y":"host"}`, [2]string{".io", "host"}, false},
		{"partial named pair falls back to positional", `{"jims":"example.com","k":".org"}`, [2]string{"example.com", ".org"}, false},
		{"single string", `{"foo":"bar"}`, [2]string{}, true},
		{"empty object", `{}`, [2]string{}, true},
		{"array", `["a.com",".io"]`, [2]string{}, true},
		{"not json", `<html>`, [2]string{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractParts([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func BenchmarkExtractAndReconstruct(b *testing.B) {
	body := []byte(`{"x":"a.com","y":"z","jims":"example.com","tock":".org"}`)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		parts, _ := ExtractParts(body)
		_, _ = Reconstruct(parts)
	}
}
