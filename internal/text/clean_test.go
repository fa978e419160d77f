package text_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/book-expert/voice-clone-service/internal/text"
)

func TestCleaner_Clean(t *testing.T) {
	t.Parallel()

	cleaner := text.NewCleaner()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "blank", input: " \t\r\n ", expected: ""},
		{name: "adds sentence ending", input: "안녕하세요", expected: "안녕하세요."},
		{name: "keeps question", input: "Are you there?", expected: "Are you there?"},
		{name: "collapses whitespace", input: "Hello,\n\n  world\t again", expected: "Hello, world again."},
		{name: "normalizes typography", input: "“Quote” — and ‘single’…", expected: `"Quote" - and 'single'...`},
		{name: "collapses repeated marks", input: "Wow!!! Really??", expected: "Wow! Really?"},
		{name: "keeps mixed marks", input: "Really?!", expected: "Really?!"},
		{name: "trims long dot runs", input: "Wait.......", expected: "Wait..."},
		{name: "drops control characters", input: "bell\x07 here", expected: "bell here."},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, cleaner.Clean(testCase.input))
		})
	}
}
