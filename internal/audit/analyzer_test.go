package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const completePage = `<!doctype html>
<html>
<head>
  <title>  Acme Widgets </title>
  <meta name="description" content=" Best widgets in town ">
</head>
<body>
  <h1>Welcome</h1>
  <img src="a.png" alt="logo">
  <a href="/about">About</a>
  <a href="https://other.com">Other</a>
  <a name="anchor-without-href">x</a>
</body>
</html>`

func TestAnalyzeCompletePage(t *testing.T) {
	t.Parallel()

	a, err := Analyze([]byte(completePage))
	require.NoError(t, err)
	require.Equal(t, "Acme Widgets", a.Title)
	require.Equal(t, "Best widgets in town", a.MetaDescription)
	require.Equal(t, "Welcome", a.H1)
	require.Equal(t, 1, a.H1Count)
	require.Zero(t, a.ImagesWithoutAlt)
	require.Equal(t, []string{"/about", "https://other.com"}, a.Links)
	require.Empty(t, a.Issues())
}

func TestAnalyzeIssueRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want []string
	}{
		{
			name: "empty document",
			html: `<html><body></body></html>`,
			want: []string{IssueMissingTitle, IssueMissingMeta, IssueNoH1},
		},
		{
			name: "blank title and empty description",
			html: `<html><head><title>   </title><meta name="description" content=""></head><body><h1>x</h1></body></html>`,
			want: []string{IssueMissingTitle, IssueMissingMeta},
		},
		{
			name: "multiple h1",
			html: `<html><head><title>t</title><meta name="description" content="d"></head>` +
				`<body><h1>a</h1><h1>b</h1><h1>c</h1></body></html>`,
			want: []string{"3 H1 tags"},
		},
		{
			name: "images without alt",
			html: `<html><head><title>t</title><meta name="description" content="d"></head>` +
				`<body><h1>a</h1><img src="1.png" alt="one"><img src="2.png"><img src="3.png" alt=""></body></html>`,
			want: []string{"2 images without alt"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, err := Analyze([]byte(tt.html))
			require.NoError(t, err)
			require.Equal(t, tt.want, a.Issues())
		})
	}
}

func TestAnalyzeFirstH1AndTitle(t *testing.T) {
	t.Parallel()

	a, err := Analyze([]byte(`<html><head><title>Primary</title></head><body>
<svg><title>icon</title></svg><h1> First </h1><h1>Second</h1></body></html>`))
	require.NoError(t, err)
	require.Equal(t, "Primary", a.Title)
	require.Equal(t, "First", a.H1)
	require.Equal(t, 2, a.H1Count)
}

func TestHTTPErrorIssue(t *testing.T) {
	t.Parallel()

	require.Equal(t, "HTTP 404 error", HTTPErrorIssue(404))
	require.Equal(t, "HTTP 500 error", HTTPErrorIssue(500))
}
