package mailbox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseUID(t *testing.T) {
	uid, err := parseUID("42")
	require.NoError(t, err)
	require.Equal(t, uint32(42), uid)

	_, err = parseUID("not-a-uid")
	require.Error(t, err)

	_, err = parseUID("")
	require.Error(t, err)
}

func TestMakeSnippetCollapsesAndTruncates(t *testing.T) {
	got := makeSnippet("Hello\n\n  world\t again")
	require.Equal(t, "Hello world again", got)

	long := ""
	for i := 0; i < 50; i++ {
		long += "abcdefghij "
	}
	got = makeSnippet(long)
	require.Len(t, got, snippetLen)
}

func TestStripHTML(t *testing.T) {
	html := `<div><p>Hello &amp; welcome</p><br><a href="x">link</a></div>`
	got := stripHTML(html)
	require.Equal(t, "Hello & welcome\n\nlink", got)
}

func TestStripHTMLEmpty(t *testing.T) {
	require.Equal(t, "", stripHTML(""))
}

func TestParseMIMEBodyPlainAndHTML(t *testing.T) {
	raw := []byte("MIME-Version: 1.0\r\n" +
		"From: sender@example.com\r\n" +
		"To: me@example.com\r\n" +
		"Subject: test\r\n" +
		"Content-Type: multipart/alternative; boundary=b1\r\n" +
		"\r\n" +
		"--b1\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain body\r\n" +
		"--b1\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html body</p>\r\n" +
		"--b1--\r\n")

	text, html := parseMIMEBody(raw)
	require.Contains(t, text, "plain body")
	require.Contains(t, html, "html body")
}

func TestParseMIMEBodyUnparseableFallsBackToRaw(t *testing.T) {
	text, html := parseMIMEBody([]byte("just some text, no headers"))
	require.Equal(t, "just some text, no headers", text)
	require.Empty(t, html)
}
