package news

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_Stable(t *testing.T) {
	a := Fingerprint("City opens new park", "https://x/1", "2025-01-01")
	b := Fingerprint("City opens new park", "https://x/1", "2025-01-01")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprint_DiffersOnAnyField(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	seen := map[string][3]string{}
	for i := 0; i < 500; i++ {
		in := [3]string{randomString(rng, 12), "https://x/" + randomString(rng, 6), randomString(rng, 10)}
		fp := Fingerprint(in[0], in[1], in[2])
		if prev, ok := seen[fp]; ok {
			require.Equal(t, prev, in, "collision on different inputs")
		}
		seen[fp] = in

		assert.NotEqual(t, fp, Fingerprint(in[0]+"x", in[1], in[2]))
		assert.NotEqual(t, fp, Fingerprint(in[0], in[1]+"x", in[2]))
		assert.NotEqual(t, fp, Fingerprint(in[0], in[1], in[2]+"x"))
	}
}

func TestFingerprint_PlainJoinDigest(t *testing.T) {
	assert.Equal(t,
		"ed90e17fc316192dadaf14f4ad69ef5031c0a5c38794d03493ca7e858f3a8dc8",
		Fingerprint("City opens new park", "https://x/1", "2025-01-01"))
}

func TestFingerprint_FieldBoundaries(t *testing.T) {
	assert.NotEqual(t,
		Fingerprint("Park_opens", "https://x/1", "2025-01-01"),
		Fingerprint("Park", "opens_https://x/1", "2025-01-01"))
	assert.NotEqual(t,
		Fingerprint("Park", "https://x/1_2025", "01-01"),
		Fingerprint("Park", "https://x/1", "2025_01-01"))

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		fields := [3]string{randomString(rng, 1+rng.Intn(12)), randomString(rng, 1+rng.Intn(12)), randomString(rng, 1+rng.Intn(12))}
		fp := Fingerprint(fields[0], fields[1], fields[2])

		// move characters across each boundary in both directions
		for b := 0; b < 2; b++ {
			left, right := fields, fields
			k := 1 + rng.Intn(len(fields[b]))
			left[b], left[b+1] = fields[b][:len(fields[b])-k], fields[b][len(fields[b])-k:]+fields[b+1]
			k = 1 + rng.Intn(len(fields[b+1]))
			right[b], right[b+1] = fields[b]+fields[b+1][:k], fields[b+1][k:]

			assert.NotEqual(t, fp, Fingerprint(left[0], left[1], left[2]), "shifted left: %q vs %q", fields, left)
			assert.NotEqual(t, fp, Fingerprint(right[0], right[1], right[2]), "shifted right: %q vs %q", fields, right)
		}
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"ordinary body", "A new park opened today serving the whole community.", true},
		{"too short", "   short   ", false},
		{"exactly ten", "0123456789", true},
		{"file photo", "FILE PHOTO: a crowd gathers in the square", false},
		{"image of", "An image of the new bridge at dusk", false},
		{"click here", "Click here to subscribe to our newsletter", false},
		{"read more", "Something happened. Read More", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValid(tt.body))
		})
	}
}

func TestIsHarmful(t *testing.T) {
	assert.True(t, IsHarmful("Massacre in the valley", ""))
	assert.True(t, IsHarmful("Update", "police found a corpse near the river"))
	assert.False(t, IsHarmful("Volunteers plant 1,000 trees", "The city thanked residents."))
}

func TestScreenKeywords_Verdict(t *testing.T) {
	c, s := ScreenKeywords("Bomb threat at station", "").Verdict()
	assert.Equal(t, Harmful, c)
	assert.Equal(t, Negative, s)

	c, s = ScreenKeywords("Two injured in accident", "crews responded").Verdict()
	assert.Equal(t, Reframable, c)
	assert.Equal(t, Negative, s)

	c, s = ScreenKeywords("Startup wins award for innovation", "").Verdict()
	assert.Equal(t, Constructive, c)
	assert.Equal(t, Positive, s)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{"empty", "   ", 50, "."},
		{"fits and ends with period", "Hello world.", 50, "Hello world."},
		{"fits and ends with bang", "Hello world!", 50, "Hello world!"},
		{"fits without terminator", "Hello   world", 50, "Hello world."},
		{"cut at late boundary", "First sentence here. Second one is longer than the limit allows", 30, "First sentence here."},
		{"no late boundary", "Hi. this text keeps going without any stop at all", 20, "Hi. this text keeps."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.text, tt.limit))
		})
	}
}

func TestFormat_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"alpha", "beta.", "gamma", "delta!", "  ", "\n", "eps", "zeta.", "\t", "ünïcode"}
	for i := 0; i < 1000; i++ {
		var b strings.Builder
		for j := rng.Intn(60); j > 0; j-- {
			b.WriteString(words[rng.Intn(len(words))])
			if rng.Intn(3) > 0 {
				b.WriteString(" ")
			}
		}
		limit := 10 + rng.Intn(200)
		out := Format(b.String(), limit)

		require.NotEmpty(t, out)
		assert.True(t, strings.HasSuffix(out, ".") || strings.HasSuffix(out, "!"), "bad ending: %q", out)
		assert.LessOrEqual(t, len([]rune(out)), limit+1, "too long: %q", out)
		assert.NotContains(t, out, "  ")
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, "short.", Clamp("short.", 100))

	long := strings.Repeat("a", 80) + ". " + strings.Repeat("b", 40)
	assert.Equal(t, strings.Repeat("a", 80)+".", Clamp(long, 100))

	noStop := strings.Repeat("c", 150)
	assert.Equal(t, strings.Repeat("c", 100)+".", Clamp(noStop, 100))
}

func TestArticle_Accessors(t *testing.T) {
	a := Article{Title: "Original", OriginalBody: "body"}
	assert.Equal(t, "Original", a.DisplayTitle())
	assert.Equal(t, "body", a.Body())

	a.Headline, a.Summary = "Rewritten", "summary."
	assert.Equal(t, "Rewritten", a.DisplayTitle())
	assert.Equal(t, "summary.", a.Body())
}

func TestParseLabels(t *testing.T) {
	c, ok := ParseClassification(" reframable ")
	assert.True(t, ok)
	assert.Equal(t, Reframable, c)

	_, ok = ParseClassification("maybe")
	assert.False(t, ok)

	s, ok := ParseSentiment("positive")
	assert.True(t, ok)
	assert.Equal(t, Positive, s)
}

func randomString(rng *rand.Rand, n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz ABC_-"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rng.Intn(len(letters))]
	}
	return string(b)
}
