package prefilter

import "testing"

func TestEnglishKeywordHit(t *testing.T) {
	if !MaybeRelevant("My Grandma has been living alone since last year") {
		t.Error("expected keyword 'grandma' to match case-insensitively")
	}
	if !MaybeRelevant("He moved into a nursing home after the fall") {
		t.Error("expected 'nursing home' to match")
	}
}

func TestChineseKeywordHit(t *testing.T) {
	if !MaybeRelevant("我奶奶一个人住在乡下") {
		t.Error("expected '奶奶' to match")
	}
	if !MaybeRelevant("社区养老院的护工很少") {
		t.Error("expected '养老院' to match")
	}
}

func TestEnglishAgePattern(t *testing.T) {
	cases := []string{
		"I'm a 72-year-old widow",
		"my 85-year-old father",
		"my 68 year old father",
		"a 83 yrs old man wrote this",
		"she is 90 year-old now",
		"a 75 years old woman",
	}
	for _, c := range cases {
		if !MaybeRelevant(c) {
			t.Errorf("expected age pattern to match %q", c)
		}
	}
}

func TestChineseAgePattern(t *testing.T) {
	if !MaybeRelevant("他今年78岁了") {
		t.Error("expected '78岁' to match")
	}
	if !MaybeRelevant("已经 85 岁高龄") {
		t.Error("expected '85 岁' with space to match")
	}
}

func TestAgeBelowSixtyDoesNotMatch(t *testing.T) {
	if MaybeRelevant("a 45-year-old engineer") {
		t.Error("expected 45-year-old not to match")
	}
	if MaybeRelevant("my 12 year old son") {
		t.Error("expected 12 year old not to match")
	}
}

func TestIrrelevantText(t *testing.T) {
	cases := []string{
		"my car broke down on the highway",
		"work has been really stressful lately",
		"",
	}
	for _, c := range cases {
		if MaybeRelevant(c) {
			t.Errorf("expected no match for %q", c)
		}
	}
}

func TestDeterministic(t *testing.T) {
	text := "My grandmother, 82, forgets my name sometimes"
	first := MaybeRelevant(text)
	for i := 0; i < 10; i++ {
		if MaybeRelevant(text) != first {
			t.Fatal("expected deterministic result")
		}
	}
	if !first {
		t.Error("expected age+kinship text to match")
	}
}
