package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"bachelor of science": "Bachelor Of Science",
		"DATA SCIENTIST":      "Data Scientist",
		"python":              "Python",
		"":                    "",
	}
	for in, want := range cases {
		assert.Equal(t, want, TitleCase(in), "输入: %q", in)
	}
}

func TestCollapseSpaces(t *testing.T) {
	assert.Equal(t, "University Of Tunis", CollapseSpaces("  University\tOf\n\nTunis  "))
	assert.Equal(t, "", CollapseSpaces(" \n\t "))
}

func TestCalculateMD5(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", CalculateMD5(nil))
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", CalculateMD5([]byte("hello")))
}

func TestStripBracketQuotes(t *testing.T) {
	assert.Equal(t, " Faculté des Sciences ", StripBracketQuotes("« Faculté des Sciences »"))
	assert.Equal(t, "ISET Sfax", StripBracketQuotes("Â«ISET SfaxÂ»"))
	assert.Equal(t, "plain", StripBracketQuotes("plain"))
}

func TestJSONArrayRoundTrip(t *testing.T) {
	assert.Equal(t, datatypes.JSON("[]"), ConvertArrayToJSON(nil))
	assert.Equal(t, []string{"a", "b"}, JSONToArray(ConvertArrayToJSON([]string{"a", "b"})))
	assert.Equal(t, []string{}, JSONToArray(datatypes.JSON("not json")))
}

func TestTimePtr(t *testing.T) {
	assert.Nil(t, TimePtr(time.Time{}))
	now := time.Now()
	assert.Equal(t, now, *TimePtr(now))
}
