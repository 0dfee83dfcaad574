package ingest

import "testing"

func TestContentTypeFromExtension(t *testing.T) {
	cases := []struct {
		ext  string
		want ContentType
	}{
		{".md", TypeMarkdown},
		{"md", TypeMarkdown},
		{".markdown", TypeMarkdown},
		{".MD", TypeMarkdown},
		{".html", TypeHTML},
		{".htm", TypeHTML},
		{".pdf", TypePDF},
		{".txt", TypePlainText},
		{".csv", TypePlainText},
		{"", TypePlainText},
	}
	for _, tc := range cases {
		if got := ContentTypeFromExtension(tc.ext); got != tc.want {
			t.Errorf("ContentTypeFromExtension(%q) = %q, want %q", tc.ext, got, tc.want)
		}
	}
}

func TestPlainTextExtractor(t *testing.T) {
	got, err := PlainTextExtractor{}.Extract([]byte("hello\nworld"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "hello\nworld" {
		t.Errorf("got %q", got)
	}
}

func TestMarkdownExtractor_KeepsSource(t *testing.T) {
	src := "# Title\n\nSome *emphasized* body."
	got, err := MarkdownExtractor{}.Extract([]byte(src))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != src {
		t.Errorf("markdown source altered: %q", got)
	}
}
