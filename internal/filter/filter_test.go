package filter

import "testing"

func TestFilter_Apply(t *testing.T) {
	f, err := New(Config{
		MinCount:          10,
		MinWords:          1,
		MaxWords:          4,
		ExcludePattern:    `бесплатно`,
		ExcludeSubstrings: []string{"скачать"},
		MinusWords:        []string{"реферат"},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		phrase string
		count  int64
		wantOK bool
	}{
		{"passes", "купить квартиру", 100, true},
		{"count too low", "купить квартиру", 5, false},
		{"too many words", "a b c d e", 100, false},
		{"exclude pattern", "квартира бесплатно", 100, false},
		{"exclude substring", "скачать прайс квартир", 100, false},
		{"minus word whole-word", "реферат про квартиры", 100, false},
		{"minus word is not substring", "рефераты это не минус", 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := f.Apply(tt.phrase, tt.count)
			if ok != tt.wantOK {
				t.Errorf("Apply(%q, %d) = %v (%s), want %v", tt.phrase, tt.count, ok, reason, tt.wantOK)
			}
			if !ok && reason == "" {
				t.Error("rejection must carry a reason")
			}
		})
	}
}

func TestFilter_IncludePattern(t *testing.T) {
	f, err := New(Config{IncludePattern: `квартир`})
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.Apply("купить квартиру", 1); !ok {
		t.Error("matching phrase rejected")
	}
	if ok, _ := f.Apply("купить дом", 1); ok {
		t.Error("non-matching phrase accepted with include pattern set")
	}
}

func TestFilter_ZeroValueAcceptsAll(t *testing.T) {
	var f *Filter
	if ok, _ := f.Apply("anything", 0); !ok {
		t.Error("nil filter must accept everything")
	}
	f2, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := f2.Apply("anything at all", 0); !ok {
		t.Error("empty config must accept everything")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{IncludePattern: `([`}); err == nil {
		t.Error("invalid include pattern should be rejected")
	}
	if _, err := New(Config{ExcludePattern: `([`}); err == nil {
		t.Error("invalid exclude pattern should be rejected")
	}
	if _, err := New(Config{MinWords: 3, MaxWords: 2}); err == nil {
		t.Error("max_words below min_words should be rejected")
	}
}
