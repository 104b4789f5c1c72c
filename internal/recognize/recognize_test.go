package recognize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsJobTitle(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"Senior Software Engineer", true},
		{"  product manager ", true},
		{"Technical Recruiter", true},
		{"VP of Sales", true},
		{"Intern", true},
		{"abc", false},                      // below length bound
		{"Our Great Benefits Package", false}, // no role keyword
		{strings.Repeat("engineer ", 10), false}, // above length bound
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsJobTitle(c.in), "%q", c.in)
	}
}

func TestIsJobTitleLengthBounds(t *testing.T) {
	// exactly at the bounds
	assert.True(t, IsJobTitle("exlead")) // 6 chars containing "lead"
	assert.False(t, IsJobTitle("lead"))  // 4 chars, under minimum
	edge := "lead " + strings.Repeat("x", 75)
	require.Len(t, edge, 80)
	assert.True(t, IsJobTitle(edge))
	assert.False(t, IsJobTitle(edge+"x"))
}

func TestFindEmailsAndDomain(t *testing.T) {
	text := "reach jane.doe@acme.io or bob_smith@sub.example.co.uk today"
	got := FindEmails(text)
	require.Len(t, got, 2)
	assert.Equal(t, "jane.doe@acme.io", got[0])

	assert.Equal(t, "acme", Domain("jane.doe@acme.io"))
	assert.Equal(t, "sub", Domain("bob@sub.example.co.uk"))
	assert.Equal(t, "", Domain("not-an-email"))
}

func TestNameFromLocalPart(t *testing.T) {
	assert.Equal(t, "Jane Doe", NameFromLocalPart("jane.doe@acme.io"))
	assert.Equal(t, "Bob M Smith", NameFromLocalPart("bob_m-smith@x.com"))
}

func TestIsFreemail(t *testing.T) {
	assert.True(t, IsFreemail("a@gmail.com"))
	assert.False(t, IsFreemail("a@acme.io"))
}

func TestParseContactLines(t *testing.T) {
	text := "a@x.com\tXCorp\tAlice\tRecruiter\n" +
		"not-an-email\tYCorp\tBob\n" +
		"charlie@acme.io\n"
	rows, dropped := ParseContactLines(text)
	require.Len(t, rows, 2, "row without an email must be skipped")
	assert.Equal(t, 1, dropped)

	assert.Equal(t, "a@x.com", rows[0].Email)
	assert.Equal(t, "XCorp", rows[0].Company)
	assert.Equal(t, "Alice", rows[0].Name)
	assert.Equal(t, "Recruiter", rows[0].Role)

	// bare address falls back to company-from-domain
	assert.Equal(t, "charlie@acme.io", rows[1].Email)
	assert.Equal(t, "Acme", rows[1].Company)
}

func TestParseContactLinesSkipsFreemailWithoutCompany(t *testing.T) {
	rows, dropped := ParseContactLines("solo@gmail.com\n")
	assert.Empty(t, rows)
	assert.Equal(t, 1, dropped)
}

func TestParseContactLinesHeaderSkipped(t *testing.T) {
	rows, dropped := ParseContactLines("Email\tName\tCompany\na@x.com\tXCorp\tAlice\n")
	require.Len(t, rows, 1)
	assert.Equal(t, 0, dropped, "the header line is not a content line")
	assert.Equal(t, "a@x.com", rows[0].Email)
}

func TestTokenizeFallsBackOnPlainFields(t *testing.T) {
	toks := Tokenize("distributed systems engineer")
	assert.Contains(t, toks, "engineer")
}
