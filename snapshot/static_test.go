package snapshot

import "testing"

const sampleHTML = `<html><head><title>Example Page</title><script>evil()</script></head>
<body>
<p>Hello world, this is the body text.</p>
<a href="/about">About Us</a>
<a href="#">skip</a>
<a href="javascript:void(0)">js link</a>
<a href="https://twitter.com/example">follow us</a>
<a href="/image.png">picture</a>
<form>
  <input id="email" name="email" type="email" placeholder="you@example.com">
  <textarea name="message" placeholder="Message"></textarea>
</form>
</body></html>`

func TestFromHTMLBasic(t *testing.T) {
	snap, err := FromHTML(sampleHTML, "https://example.com/page")
	if err != nil {
		t.Fatalf("FromHTML: %v", err)
	}
	if snap.Title != "Example Page" {
		t.Fatalf("expected title, got %q", snap.Title)
	}
	if strContains(snap.Text, "evil()") {
		t.Fatal("script content leaked into body text")
	}
	if len(snap.Links) != 1 {
		t.Fatalf("expected exactly 1 surviving link after noise filter, got %d: %+v", len(snap.Links), snap.Links)
	}
	if snap.Links[0].Index != 0 {
		t.Fatalf("expected dense index starting at 0, got %d", snap.Links[0].Index)
	}
	if len(snap.Forms) != 1 || len(snap.Forms[0].Inputs) != 2 {
		t.Fatalf("expected 1 form with 2 inputs, got %+v", snap.Forms)
	}
}

func TestFromHTMLTruncatesBodyText(t *testing.T) {
	big := "<html><body><p>"
	for i := 0; i < 10000; i++ {
		big += "word "
	}
	big += "</p></body></html>"
	snap, err := FromHTML(big, "https://example.com/")
	if err != nil {
		t.Fatalf("FromHTML: %v", err)
	}
	if len([]rune(snap.Text)) > maxTextLen {
		t.Fatalf("expected text truncated to %d runes, got %d", maxTextLen, len([]rune(snap.Text)))
	}
}

func TestDisplayURLTruncatesLongURLs(t *testing.T) {
	long := "https://example.com/a/very/long/path?"
	for i := 0; i < 50; i++ {
		long += "q=1&"
	}
	out := DisplayURL(long)
	if out != "https://example.com/a/very/long/path?..." {
		t.Fatalf("expected truncated display URL, got %q", out)
	}
}

func strContains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
